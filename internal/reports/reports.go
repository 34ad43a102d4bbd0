// Package reports serves read-only aggregates over requests and the
// audit trail.
package reports

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/atendimento"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/httpx"
	"github.com/simas-gestao/simas/internal/workflow"
)

// Report identifiers.
const (
	AtendimentosPorStatus = "atendimentos-por-status"
	AtendimentosPorTipo   = "atendimentos-por-tipo"
	AuditoriaPorAcao      = "auditoria-por-acao"
	KanbanResumo          = "kanban-resumo"
)

// Report is a named set of counts.
type Report struct {
	ID     string         `json:"id"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// Service builds reports.
type Service struct {
	store *entity.Store
	svc   *atendimento.Service
}

// NewService creates a report Service.
func NewService(store *entity.Store, svc *atendimento.Service) *Service {
	return &Service{store: store, svc: svc}
}

// IDs lists the available reports.
func IDs() []string {
	return []string{AtendimentosPorStatus, AtendimentosPorTipo, AuditoriaPorAcao, KanbanResumo}
}

// Build computes report id. Unknown ids fail with ErrNotFound.
func (s *Service) Build(ctx context.Context, id string) (*Report, error) {
	var (
		counts map[string]int
		err    error
	)
	switch id {
	case AtendimentosPorStatus:
		counts, err = s.countAtendimentos(ctx, "STATUS_PEDIDO", statusKeys())
	case AtendimentosPorTipo:
		counts, err = s.countAtendimentos(ctx, "TIPO_PEDIDO", tipoKeys())
	case AuditoriaPorAcao:
		counts, err = s.countAudit(ctx)
	case KanbanResumo:
		counts, err = s.countKanban(ctx)
	default:
		return nil, fmt.Errorf("%w: relatório %q", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rep := &Report{ID: id, Counts: counts}
	for _, n := range counts {
		rep.Total += n
	}
	return rep, nil
}

// countAtendimentos groups requests by column, zero-filling known keys.
func (s *Service) countAtendimentos(ctx context.Context, column string, keys []string) (map[string]int, error) {
	counts, err := s.store.CountBy(ctx, entity.KindAtendimento, column)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if _, ok := counts[k]; !ok {
			counts[k] = 0
		}
	}
	return counts, nil
}

func (s *Service) countAudit(ctx context.Context) (map[string]int, error) {
	byAction, err := s.store.Audit().CountByAction(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(byAction))
	for action, n := range byAction {
		counts[string(action)] = n
	}
	return counts, nil
}

func (s *Service) countKanban(ctx context.Context) (map[string]int, error) {
	board, err := s.svc.Kanban(ctx, s.store.Now())
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(board))
	for bucket, items := range board {
		counts[string(bucket)] = len(items)
	}
	return counts, nil
}

func statusKeys() []string {
	return []string{
		string(workflow.StatusAguardando),
		string(workflow.StatusAcatado),
		string(workflow.StatusDeclinado),
	}
}

func tipoKeys() []string {
	keys := make([]string, 0, len(workflow.TiposPedido))
	for _, t := range workflow.TiposPedido {
		keys = append(keys, string(t))
	}
	slices.Sort(keys)
	return keys
}

// RegisterRoutes mounts the report endpoints.
func RegisterRoutes(r chi.Router, s *Service, logger *zap.Logger) {
	r.Get("/reports", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, IDs())
	})
	r.Get("/reports/{reportID}", func(w http.ResponseWriter, r *http.Request) {
		rep, err := s.Build(r.Context(), chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.Error(w, logger, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rep)
	})
}
