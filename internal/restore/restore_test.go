package restore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/atendimento"
	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/db"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/session"
	"github.com/simas-gestao/simas/internal/workflow"
)

var (
	admin  = session.Session{UserID: "root", Role: session.RoleAdmin}
	editor = session.Session{UserID: "ana", Role: session.RoleEditor}
)

func setup(t *testing.T) (*Engine, *entity.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	auditStore := audit.NewStore(database, zap.NewNop())
	store := entity.NewStore(database, auditStore, zap.NewNop())
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	store.SetClock(clock)
	auditStore.SetClock(clock)
	return NewEngine(store, zap.NewNop()), store
}

func lastEntry(t *testing.T, store *entity.Store, action audit.Action) audit.Entry {
	t.Helper()
	entries, err := store.Audit().Query(context.Background(), audit.QueryFilter{Action: action, Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, entries, "no %s entry", action)
	return entries[0]
}

func allEntries(t *testing.T, store *entity.Store) []audit.Entry {
	t.Helper()
	entries, err := store.Audit().Query(context.Background(), audit.QueryFilter{Ascending: true})
	require.NoError(t, err)
	return entries
}

func TestRestoreDeleteRoundTrip(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	created, err := store.Create(ctx, editor, entity.KindContrato, map[string]any{
		"CPF": "52998224725", "FUNCAO": "Professor", "SALARIO": "3500.50", "DATA_INICIO": "2024-01-10",
	})
	require.NoError(t, err)
	id := created.String("ID_CONTRATO")
	require.NoError(t, store.Delete(ctx, editor, entity.KindContrato, id))

	res, err := engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionExcluir).ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, entity.KindContrato, id)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, created, res.Record)
}

func TestRestoreAppendsExactlyOneEntryAndKeepsOriginal(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, editor, entity.KindPessoa, map[string]any{"CPF": "52998224725", "NOME": "Ana"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, editor, entity.KindPessoa, "52998224725"))

	before := allEntries(t, store)
	orig := lastEntry(t, store, audit.ActionExcluir)

	res, err := engine.Restore(ctx, admin, orig.ID)
	require.NoError(t, err)

	after := allEntries(t, store)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)])

	added := after[len(after)-1]
	assert.Equal(t, audit.ActionRestaurar, added.Action)
	assert.Equal(t, orig.ID, added.RestoredFrom)
	assert.Equal(t, "Pessoa", added.Table)
	assert.Equal(t, "52998224725", added.RecordID)
	assert.Equal(t, "root", added.User)
	assert.Equal(t, res.Entry.ID, added.ID)

	origNow, err := store.Audit().GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, orig, *origNow)
}

func TestRestoreCreateDeletesRecord(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	created, err := store.Create(ctx, editor, entity.KindVaga, map[string]any{"CARGO": "Médico"})
	require.NoError(t, err)

	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionCriar).ID)
	require.NoError(t, err)

	_, err = store.Get(ctx, entity.KindVaga, created.String("ID_VAGA"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	entry := lastEntry(t, store, audit.ActionRestaurar)
	assert.NotNil(t, entry.OldValue)
	assert.Nil(t, entry.NewValue)

	// The record is gone; undoing the creation again is stale.
	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionCriar).ID)
	assert.ErrorIs(t, err, apperrors.ErrStale)
}

func TestRestoreEdit(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, editor, entity.KindPessoa, map[string]any{"CPF": "52998224725", "NOME": "Ana", "EMAIL": "ana@x.br"})
	require.NoError(t, err)
	_, err = store.Update(ctx, editor, entity.KindPessoa, "52998224725", map[string]any{"NOME": "Ana Maria"})
	require.NoError(t, err)
	edit := lastEntry(t, store, audit.ActionEditar)

	// An unrelated later change does not make the restore stale.
	_, err = store.Update(ctx, editor, entity.KindPessoa, "52998224725", map[string]any{"EMAIL": "ana@y.br"})
	require.NoError(t, err)

	_, err = engine.Restore(ctx, admin, edit.ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, entity.KindPessoa, "52998224725")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.String("NOME"))
	assert.Equal(t, "ana@y.br", got.String("EMAIL"))
}

func TestRestoreEditStaleWritesNothing(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, editor, entity.KindPessoa, map[string]any{"CPF": "52998224725", "NOME": "Ana"})
	require.NoError(t, err)
	_, err = store.Update(ctx, editor, entity.KindPessoa, "52998224725", map[string]any{"NOME": "Ana Maria"})
	require.NoError(t, err)
	edit := lastEntry(t, store, audit.ActionEditar)
	_, err = store.Update(ctx, editor, entity.KindPessoa, "52998224725", map[string]any{"NOME": "Ana Clara"})
	require.NoError(t, err)

	before := allEntries(t, store)
	_, err = engine.Restore(ctx, admin, edit.ID)
	assert.ErrorIs(t, err, apperrors.ErrStale)

	assert.Equal(t, before, allEntries(t, store))
	got, err := store.Get(ctx, entity.KindPessoa, "52998224725")
	require.NoError(t, err)
	assert.Equal(t, "Ana Clara", got.String("NOME"))

	// Missing record is stale too.
	require.NoError(t, store.Delete(ctx, editor, entity.KindPessoa, "52998224725"))
	_, err = engine.Restore(ctx, admin, edit.ID)
	assert.ErrorIs(t, err, apperrors.ErrStale)
}

func TestRestoreEditBumpsVersion(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	err := store.Do(ctx, editor, func(r *entity.Repo) error {
		if _, err := r.Create(ctx, entity.KindAtendimento, map[string]any{
			"ID_ATENDIMENTO": "a1", "CPF": "52998224725", "TIPO_PEDIDO": "Outro", "STATUS_PEDIDO": "Aguardando",
		}); err != nil {
			return err
		}
		_, err := r.Update(ctx, entity.KindAtendimento, "a1", map[string]any{"RESPONSAVEL": "bia"})
		return err
	})
	require.NoError(t, err)

	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionEditar).ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, entity.KindAtendimento, "a1")
	require.NoError(t, err)
	assert.Nil(t, got["RESPONSAVEL"])
	assert.Equal(t, "3", got.String("VERSAO"))

	// Atendimentos are never physically deleted, even by restore.
	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionCriar).ID)
	assert.ErrorIs(t, err, apperrors.ErrBusinessRule)
}

func TestRestoreEditRederivesAtendimento(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()
	svc := atendimento.NewService(store, zap.NewNop())

	_, err := store.Create(ctx, editor, entity.KindPessoa, map[string]any{"CPF": "52998224725", "NOME": "Ana"})
	require.NoError(t, err)
	a, _, err := svc.Create(ctx, editor, workflow.NewRequest{
		CPF: "52998224725", TipoPedido: workflow.TipoContratacao, Remetente: "Ouvidoria", DataAgendamento: "2030-01-10",
	})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, editor, a.ID, workflow.StatusChange{StatusPedido: workflow.StatusAcatado})
	require.NoError(t, err)
	cleared := ""
	_, err = svc.Transition(ctx, editor, a.ID, workflow.StatusChange{StatusPedido: workflow.StatusAcatado, DataAgendamento: &cleared})
	require.NoError(t, err)
	clearDate := lastEntry(t, store, audit.ActionEditar)
	_, err = svc.Transition(ctx, editor, a.ID, workflow.StatusChange{StatusPedido: workflow.StatusDeclinado, Justificativa: "Sem orçamento"})
	require.NoError(t, err)

	_, err = engine.Restore(ctx, admin, clearDate.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-10", got.DataAgendamento)
	assert.Equal(t, workflow.StatusDeclinado, got.StatusPedido)
	assert.Equal(t, workflow.Metadata{
		TipoDeAcao:        workflow.ActionNenhuma,
		EntidadeAlvo:      workflow.TargetNenhuma,
		StatusAgendamento: workflow.SchedulingPendente,
	}, got.Metadata())
}

func TestRestoreArchiveAndDeactivate(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	srv, err := store.Create(ctx, editor, entity.KindServidor, map[string]any{"MATRICULA": "123", "CARGO": "Agente"})
	require.NoError(t, err)
	_, err = store.Archive(ctx, editor, entity.KindServidor, "123", "Exoneração")
	require.NoError(t, err)

	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionInativar).ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, entity.KindServidor, "123")
	require.NoError(t, err)
	assert.Equal(t, srv, got)
	inativos, err := store.List(ctx, entity.KindServidorInativo, entity.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, inativos)

	// Live again: restoring the same deactivation conflicts.
	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionInativar).ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	contrato, err := store.Create(ctx, editor, entity.KindContrato, map[string]any{"CPF": "52998224725"})
	require.NoError(t, err)
	_, err = store.Archive(ctx, editor, entity.KindContrato, contrato.String("ID_CONTRATO"), "Encerrado")
	require.NoError(t, err)
	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionArquivar).ID)
	require.NoError(t, err)
	_, err = store.Get(ctx, entity.KindContrato, contrato.String("ID_CONTRATO"))
	assert.NoError(t, err)
}

func TestRestoreRejections(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, editor, entity.KindPessoa, map[string]any{"CPF": "52998224725"})
	require.NoError(t, err)
	created := lastEntry(t, store, audit.ActionCriar)

	_, err = engine.Restore(ctx, editor, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = engine.Restore(ctx, admin, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = engine.Restore(ctx, admin, created.ID)
	require.NoError(t, err)
	_, err = engine.Restore(ctx, admin, lastEntry(t, store, audit.ActionRestaurar).ID)
	assert.ErrorIs(t, err, apperrors.ErrBusinessRule)
}

func TestHTTPRestore(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, editor, entity.KindPessoa, map[string]any{"CPF": "52998224725"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, editor, entity.KindPessoa, "52998224725"))
	logID := lastEntry(t, store, audit.ActionExcluir).ID

	router := func(sess session.Session) chi.Router {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(session.WithSession(req.Context(), sess)))
			})
		})
		RegisterRoutes(r, engine, zap.NewNop())
		return r
	}

	tests := []struct {
		name string
		sess session.Session
		url  string
		want int
	}{
		{"editor forbidden", editor, "/Pessoa/" + logID + "/restore", http.StatusForbidden},
		{"wrong table", admin, "/Vaga/" + logID + "/restore", http.StatusBadRequest},
		{"unknown log", admin, "/Pessoa/nope/restore", http.StatusNotFound},
		{"ok", admin, "/Pessoa/" + logID + "/restore", http.StatusOK},
		{"again conflicts", admin, "/Pessoa/" + logID + "/restore", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router(tt.sess).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.url, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
