package restore

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/httpx"
	"github.com/simas-gestao/simas/internal/session"
)

// RegisterRoutes mounts POST /{entity}/{id}/restore, where id is the
// ID_LOG of the entry to undo. Only admins may restore.
func RegisterRoutes(r chi.Router, engine *Engine, logger *zap.Logger) {
	r.With(session.RequireRole(session.RoleAdmin)).
		Post("/{entity}/{id}/restore", handleRestore(engine, logger))
}

func handleRestore(engine *Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "entity")
		logID := chi.URLParam(r, "id")

		entry, err := engine.store.Audit().GetByID(r.Context(), logID)
		if err != nil {
			httpx.Error(w, logger, r, err)
			return
		}
		if entry.Table != table {
			httpx.Error(w, logger, r, fmt.Errorf("%w: registro de auditoria %s pertence a %s, não a %s",
				apperrors.ErrValidation, logID, entry.Table, table))
			return
		}

		sess, _ := session.FromContext(r.Context())
		res, err := engine.Restore(r.Context(), sess, logID)
		if err != nil {
			httpx.Error(w, logger, r, err)
			return
		}
		httpx.OK(w, http.StatusOK, res, fmt.Sprintf("%s restaurado a partir do registro %s", entry.Action, logID))
	}
}
