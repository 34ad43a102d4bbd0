package execution

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/httpx"
	"github.com/simas-gestao/simas/internal/session"
)

// RegisterRoutes mounts the execution endpoint.
func RegisterRoutes(r chi.Router, ex *Executor, logger *zap.Logger) {
	h := &handler{ex: ex, logger: logger}
	r.With(session.RequireRole(session.RoleAdmin, session.RoleEditor)).
		Post("/Atendimento/{id}/executar", h.execute)
}

type handler struct {
	ex     *Executor
	logger *zap.Logger
}

func (h *handler) execute(w http.ResponseWriter, r *http.Request) {
	var req Request
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, h.logger, r, err)
			return
		}
	}
	sess, _ := session.FromContext(r.Context())

	res, err := h.ex.Execute(r.Context(), sess, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, res, "ação executada")
}
