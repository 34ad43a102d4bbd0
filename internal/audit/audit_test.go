package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := NewStore(database, zap.NewNop())

	// Deterministic, strictly increasing clock.
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	tick := 0
	store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	return store
}

func appendEntry(t *testing.T, store *Store, e Entry) *Entry {
	t.Helper()
	got, err := store.Append(context.Background(), store.db, e)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	return got
}

func TestAppendAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	oldValue, _ := Snapshot(map[string]any{"CPF": "52998224725", "NOME": "Ana"})
	newValue, _ := Snapshot(map[string]any{"CPF": "52998224725", "NOME": "Ana Maria"})

	appendEntry(t, store, Entry{
		ID:       "log-1",
		User:     "alice",
		Action:   ActionEditar,
		Table:    "Pessoa",
		RecordID: "52998224725",
		OldValue: oldValue,
		NewValue: newValue,
	})

	got, err := store.GetByID(ctx, "log-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if got.User != "alice" {
		t.Errorf("User = %q, want %q", got.User, "alice")
	}
	if got.Action != ActionEditar {
		t.Errorf("Action = %q, want %q", got.Action, ActionEditar)
	}
	if got.Table != "Pessoa" || got.RecordID != "52998224725" {
		t.Errorf("Table/RecordID = %q/%q", got.Table, got.RecordID)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	row, err := DecodeSnapshot(got.NewValue)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if row["NOME"] != "Ana Maria" {
		t.Errorf("VALOR_NOVO.NOME = %v, want %q", row["NOME"], "Ana Maria")
	}
}

func TestAppendGeneratesUUIDAndStoresNullSnapshots(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	newValue, _ := Snapshot(map[string]any{"ID_VAGA": "v1"})
	e := appendEntry(t, store, Entry{
		User:     "system",
		Action:   ActionCriar,
		Table:    "Vaga",
		RecordID: "v1",
		NewValue: newValue,
	})
	if e.ID == "" {
		t.Fatal("expected generated ID, got empty string")
	}

	got, err := store.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.OldValue != nil {
		t.Errorf("OldValue = %s, want nil for CRIAR", got.OldValue)
	}

	body, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v, ok := decoded["VALOR_ANTIGO"]; !ok || v != nil {
		t.Errorf("VALOR_ANTIGO = %v, want null", v)
	}
}

func TestAppendRejectsInvalidEntries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	cases := []Entry{
		{User: "alice", Action: "APAGAR", Table: "Pessoa", RecordID: "1"},
		{User: "alice", Action: ActionCriar, RecordID: "1"},
		{Action: ActionCriar, Table: "Pessoa", RecordID: "1"},
	}
	for _, e := range cases {
		if _, err := store.Append(ctx, store.db, e); err == nil {
			t.Errorf("Append(%+v): expected error", e)
		}
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	appendEntry(t, store, Entry{User: "alice", Action: ActionCriar, Table: "Pessoa", RecordID: "1"})
	appendEntry(t, store, Entry{User: "bob", Action: ActionEditar, Table: "Pessoa", RecordID: "1"})
	appendEntry(t, store, Entry{User: "alice", Action: ActionCriar, Table: "Vaga", RecordID: "v1"})
	appendEntry(t, store, Entry{User: "alice", Action: ActionRestaurar, Table: "Pessoa", RecordID: "1", RestoredFrom: "x"})

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"by user", QueryFilter{User: "alice"}, 3},
		{"by action", QueryFilter{Action: ActionCriar}, 2},
		{"by table", QueryFilter{Table: "Pessoa"}, 3},
		{"by record", QueryFilter{Table: "Pessoa", RecordID: "1"}, 3},
		{"by restored", QueryFilter{RestoredFrom: "x"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, len(entries))
			}
		})
	}
}

func TestQueryOrderingAndTimeRange(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		appendEntry(t, store, Entry{ID: id, User: "alice", Action: ActionEditar, Table: "Pessoa", RecordID: "1"})
	}

	entries, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", entries[0].ID, entries[2].ID)
	}

	entries, err = store.Query(ctx, QueryFilter{Ascending: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if entries[0].ID != "a" {
		t.Errorf("expected oldest first, got %s", entries[0].ID)
	}

	since := time.Date(2024, 1, 10, 9, 0, 2, 0, time.UTC)
	entries, err = store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries since %s, got %d", since, len(entries))
	}
}

func TestQueryLimitOffset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendEntry(t, store, Entry{User: "alice", Action: ActionEditar, Table: "Pessoa", RecordID: "1"})
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry with offset, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Offset: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with offset only, got %d", len(entries))
	}
}

func TestCountByAction(t *testing.T) {
	store := setupStore(t)

	appendEntry(t, store, Entry{User: "alice", Action: ActionCriar, Table: "Pessoa", RecordID: "1"})
	appendEntry(t, store, Entry{User: "alice", Action: ActionCriar, Table: "Pessoa", RecordID: "2"})
	appendEntry(t, store, Entry{User: "alice", Action: ActionExcluir, Table: "Pessoa", RecordID: "2"})

	counts, err := store.CountByAction(context.Background())
	if err != nil {
		t.Fatalf("CountByAction: %v", err)
	}
	if counts[ActionCriar] != 2 || counts[ActionExcluir] != 1 || counts[ActionRestaurar] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if len(counts) != len(Actions) {
		t.Errorf("expected every action reported, got %v", counts)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDecodeSnapshotKeepsNumbers(t *testing.T) {
	row, err := DecodeSnapshot(json.RawMessage(`{"SALARIO": 3500.50}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if n, ok := row["SALARIO"].(json.Number); !ok || n.String() != "3500.50" {
		t.Errorf("SALARIO = %#v, want json.Number(3500.50)", row["SALARIO"])
	}

	row, err = DecodeSnapshot(json.RawMessage("null"))
	if err != nil || row != nil {
		t.Errorf("DecodeSnapshot(null) = %v, %v", row, err)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store, zap.NewNop())
	return r, store
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)
	appendEntry(t, store, Entry{ID: "http-1", User: "alice", Action: ActionCriar, Table: "Pessoa", RecordID: "1"})

	req := httptest.NewRequest(http.MethodGet, "/audit/http-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" {
		t.Errorf("ID = %q, want %q", got.ID, "http-1")
	}
	if got.User != "alice" {
		t.Errorf("User = %q, want %q", got.User, "alice")
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/audit/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPQuery(t *testing.T) {
	r, store := setupRouter(t)

	for _, user := range []string{"alice", "bob", "alice"} {
		appendEntry(t, store, Entry{User: user, Action: ActionCriar, Table: "Pessoa", RecordID: user})
	}

	req := httptest.NewRequest(http.MethodGet, "/audit?usuario=alice&limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for alice, got %d", len(entries))
	}
}

func TestHTTPQueryRejectsBadParams(t *testing.T) {
	r, _ := setupRouter(t)

	for _, url := range []string{"/audit?acao=APAGAR", "/audit?limit=abc", "/audit?desde=ontem"} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", url, rec.Code, http.StatusBadRequest)
		}
	}
}
