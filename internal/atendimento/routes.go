package atendimento

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/httpx"
	"github.com/simas-gestao/simas/internal/session"
	"github.com/simas-gestao/simas/internal/workflow"
)

// RegisterRoutes mounts the Atendimento endpoints. Routes must sit behind
// the session middleware.
func RegisterRoutes(r chi.Router, svc *Service, logger *zap.Logger) {
	h := &handler{svc: svc, logger: logger}
	write := r.With(session.RequireRole(session.RoleAdmin, session.RoleEditor))

	r.Get("/Atendimento", h.list)
	r.Get("/Atendimento/kanban", h.kanban)
	r.Get("/Atendimento/{id}", h.get)
	write.Post("/Atendimento", h.create)
	write.Put("/Atendimento/{id}", h.transition)
}

type handler struct {
	svc    *Service
	logger *zap.Logger
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req workflow.NewRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	sess, _ := session.FromContext(r.Context())

	a, created, err := h.svc.Create(r.Context(), sess, req)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	if !created {
		httpx.OK(w, http.StatusOK, a, "atendimento já registrado")
		return
	}
	httpx.OK(w, http.StatusCreated, a, "atendimento registrado")
}

func (h *handler) transition(w http.ResponseWriter, r *http.Request) {
	var ch workflow.StatusChange
	if err := httpx.Decode(r, &ch); err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	sess, _ := session.FromContext(r.Context())

	a, err := h.svc.Transition(r.Context(), sess, chi.URLParam(r, "id"), ch)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, a, "atendimento atualizado")
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		StatusPedido: workflow.StatusPedido(q.Get("STATUS_PEDIDO")),
		TipoPedido:   workflow.TipoPedido(q.Get("TIPO_PEDIDO")),
		CPF:          q.Get("CPF"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		filter.Offset = n
	}

	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) kanban(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Kanban(r.Context(), h.svc.store.Now())
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, board)
}
