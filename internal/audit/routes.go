package audit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/httpx"
)

const maxPageSize = 500

// RegisterRoutes mounts audit endpoints under /audit on the given router.
func RegisterRoutes(r chi.Router, store *Store, logger *zap.Logger) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", handleQuery(store, logger))
		r.Get("/{id}", handleGetByID(store, logger))
	})
}

func handleQuery(store *Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			httpx.Error(w, logger, r, err)
			return
		}

		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			httpx.Error(w, logger, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, entries)
	}
}

func handleGetByID(store *Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.Error(w, logger, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, entry)
	}
}

func parseFilter(r *http.Request) (QueryFilter, error) {
	q := r.URL.Query()

	filter := QueryFilter{
		User:     q.Get("usuario"),
		Table:    q.Get("tabela"),
		RecordID: q.Get("registro"),
		Limit:    100,
	}

	if v := q.Get("acao"); v != "" {
		filter.Action = Action(v)
		if !filter.Action.Valid() {
			return filter, fmt.Errorf("%w: ação %q desconhecida", apperrors.ErrValidation, v)
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"desde", &filter.Since}, {"ate", &filter.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return filter, fmt.Errorf("%w: parâmetro %q inválido", apperrors.ErrValidation, p.name)
		}
		*p.dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("%w: limit inválido", apperrors.ErrValidation)
		}
		filter.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w: offset inválido", apperrors.ErrValidation)
		}
		filter.Offset = n
	}
	return filter, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
