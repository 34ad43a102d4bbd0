package entity

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/httpx"
	"github.com/simas-gestao/simas/internal/session"
)

// RegisterRoutes mounts the generic CRUD endpoints and the dedicated
// archive and deactivate operations. Routes must sit behind the session
// middleware.
func RegisterRoutes(r chi.Router, store *Store, logger *zap.Logger) {
	h := &handler{store: store, logger: logger}
	write := r.With(session.RequireRole(session.RoleAdmin, session.RoleEditor))

	write.Post("/Servidor/inativar", h.archive(KindServidor))
	write.Post("/Contrato/arquivar", h.archive(KindContrato))

	r.Get("/{entity}", h.list)
	r.Get("/{entity}/{id}", h.get)
	write.Post("/{entity}", h.create)
	write.Put("/{entity}/{id}", h.update)
	write.Delete("/{entity}/{id}", h.delete)
}

type handler struct {
	store  *Store
	logger *zap.Logger
}

// archiveRequest is the body of /Servidor/inativar and /Contrato/arquivar.
// The record id is read from the kind's primary key field.
type archiveRequest map[string]any

func (h *handler) archive(kind Kind) http.HandlerFunc {
	def := MustLookup(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		var body archiveRequest
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, h.logger, r, err)
			return
		}
		idValue, _ := normalizeValue(body[def.PrimaryKey])
		id, _ := idValue.(string)
		reason, _ := body["MOTIVO"].(string)
		if id == "" {
			httpx.Error(w, h.logger, r, fmt.Errorf("%w: campo %s é obrigatório", apperrors.ErrValidation, def.PrimaryKey))
			return
		}

		archived, err := h.store.Archive(r.Context(), requestSession(r), kind, id, reason)
		if err != nil {
			httpx.Error(w, h.logger, r, err)
			return
		}
		httpx.OK(w, http.StatusOK, archived, fmt.Sprintf("%s %s arquivado", kind, id))
	}
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	def, err := Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}

	filter := ListFilter{Where: map[string]string{}}
	for key, values := range r.URL.Query() {
		switch key {
		case "limit", "offset":
			n, err := strconv.Atoi(values[0])
			if err != nil || n < 0 {
				httpx.Error(w, h.logger, r, fmt.Errorf("%w: %s inválido", apperrors.ErrValidation, key))
				return
			}
			if key == "limit" {
				filter.Limit = n
			} else {
				filter.Offset = n
			}
		default:
			filter.Where[key] = values[0]
		}
	}

	records, err := h.store.List(r.Context(), def.Kind, filter)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, records)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	def, err := Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	rec, err := h.store.Get(r.Context(), def.Kind, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	def, err := Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	var body map[string]any
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}

	created, err := h.store.Create(r.Context(), requestSession(r), def.Kind, body)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created, fmt.Sprintf("%s criado", def.Kind))
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	def, err := Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	var body map[string]any
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}

	updated, err := h.store.Update(r.Context(), requestSession(r), def.Kind, chi.URLParam(r, "id"), body)
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated, fmt.Sprintf("%s atualizado", def.Kind))
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	def, err := Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	if err := h.store.Delete(r.Context(), requestSession(r), def.Kind, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, h.logger, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil, fmt.Sprintf("%s excluído", def.Kind))
}

// requestSession returns the request session. Routes are mounted behind the
// session middleware, so a missing session yields an empty one that every
// write check rejects.
func requestSession(r *http.Request) session.Session {
	s, _ := session.FromContext(r.Context())
	return s
}
