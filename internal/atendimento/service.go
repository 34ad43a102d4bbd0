package atendimento

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/metrics"
	"github.com/simas-gestao/simas/internal/session"
	"github.com/simas-gestao/simas/internal/workflow"
)

// Service creates, transitions and reads Atendimentos.
type Service struct {
	store     *entity.Store
	validator *workflow.Validator
	logger    *zap.Logger
}

// NewService creates a Service writing through store.
func NewService(store *entity.Store, logger *zap.Logger) *Service {
	return &Service{store: store, validator: workflow.NewValidator(), logger: logger}
}

// Create registers a new request in status Aguardando. When req carries an
// ID that already exists, the stored request is returned unchanged and
// created is false, so retried submissions are harmless.
func (s *Service) Create(ctx context.Context, sess session.Session, req workflow.NewRequest) (a *Atendimento, created bool, err error) {
	if err := sess.RequireWrite(); err != nil {
		return nil, false, err
	}
	if err := s.validator.NewRequest(&req); err != nil {
		return nil, false, err
	}

	err = s.store.Do(ctx, sess, func(r *entity.Repo) error {
		if req.ID != "" {
			existing, err := r.Get(ctx, entity.KindAtendimento, req.ID)
			if err == nil {
				a = FromRecord(existing)
				return nil
			}
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
		}

		if err := checkPrerequisites(ctx, r, req); err != nil {
			return err
		}

		a = &Atendimento{
			ID:              req.ID,
			CPF:             req.CPF,
			TipoPedido:      req.TipoPedido,
			Remetente:       req.Remetente,
			Responsavel:     req.Responsavel,
			StatusPedido:    workflow.StatusAguardando,
			DataAgendamento: req.DataAgendamento,
			DataEntrada:     r.Now().UTC().Format(entity.DateTimeLayout),
			IDVaga:          req.IDVaga,
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.Rederive()

		rec, err := r.Create(ctx, entity.KindAtendimento, a.Record())
		if err != nil {
			return err
		}
		a = FromRecord(rec)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("atendimento created",
			zap.String("id", a.ID),
			zap.String("tipo_pedido", string(a.TipoPedido)),
			zap.String("usuario", sess.UserID))
	}
	return a, created, nil
}

// checkPrerequisites verifies the lookup data a request type depends on.
func checkPrerequisites(ctx context.Context, r *entity.Repo, req workflow.NewRequest) error {
	exists, err := r.Exists(ctx, entity.KindPessoa, req.CPF)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: pessoa com CPF %s não cadastrada", apperrors.ErrBusinessRule, req.CPF)
	}

	switch req.TipoPedido {
	case workflow.TipoDemissao, workflow.TipoPromocaoContratado, workflow.TipoMudancaContratado:
		contratos, err := r.Find(ctx, entity.KindContrato, "CPF", req.CPF)
		if err != nil {
			return err
		}
		if len(contratos) == 0 {
			return fmt.Errorf("%w: %s exige contrato ativo para o CPF %s", apperrors.ErrBusinessRule, req.TipoPedido, req.CPF)
		}
	case workflow.TipoExoneracaoComissionado, workflow.TipoExoneracaoServicoPublico,
		workflow.TipoAlocacaoServidor, workflow.TipoMudancaAlocacaoServidor:
		servidores, err := r.Find(ctx, entity.KindServidor, "CPF", req.CPF)
		if err != nil {
			return err
		}
		if len(servidores) == 0 {
			return fmt.Errorf("%w: %s exige servidor ativo para o CPF %s", apperrors.ErrBusinessRule, req.TipoPedido, req.CPF)
		}
	case workflow.TipoReservaVaga:
		exists, err := r.Exists(ctx, entity.KindVaga, req.IDVaga)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: vaga %q não encontrada", apperrors.ErrBusinessRule, req.IDVaga)
		}
	}
	return nil
}

// Transition applies a reviewer's decision and re-derives the metadata.
func (s *Service) Transition(ctx context.Context, sess session.Session, id string, ch workflow.StatusChange) (*Atendimento, error) {
	if err := sess.RequireWrite(); err != nil {
		return nil, err
	}
	if err := s.validator.StatusChange(&ch); err != nil {
		return nil, err
	}

	var (
		a    *Atendimento
		from workflow.StatusPedido
	)
	err := s.store.Do(ctx, sess, func(r *entity.Repo) error {
		current, err := Load(ctx, r, id)
		if err != nil {
			return err
		}
		if err := CheckVersion(current, ch.Versao); err != nil {
			return err
		}
		if err := workflow.CheckTransition(current.StatusPedido, ch.StatusPedido, current.StatusAgendamento); err != nil {
			return err
		}
		from = current.StatusPedido

		next := *current
		next.StatusPedido = ch.StatusPedido
		if ch.Justificativa != "" {
			next.Justificativa = ch.Justificativa
		}
		if ch.DataAgendamento != nil {
			next.DataAgendamento = *ch.DataAgendamento
		}
		if ch.Responsavel != nil {
			next.Responsavel = *ch.Responsavel
		}
		next.Rederive()

		rec, err := r.Update(ctx, entity.KindAtendimento, id, next.Record())
		if err != nil {
			return err
		}
		a = FromRecord(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transition(string(from), string(a.StatusPedido))
	s.logger.Info("atendimento updated",
		zap.String("id", a.ID),
		zap.String("de", string(from)),
		zap.String("para", string(a.StatusPedido)),
		zap.String("tipo_de_acao", string(a.TipoDeAcao)),
		zap.String("usuario", sess.UserID))
	return a, nil
}

// Get loads one request.
func (s *Service) Get(ctx context.Context, id string) (*Atendimento, error) {
	rec, err := s.store.Get(ctx, entity.KindAtendimento, id)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec), nil
}

// ListFilter narrows List results.
type ListFilter struct {
	StatusPedido workflow.StatusPedido
	TipoPedido   workflow.TipoPedido
	CPF          string
	Limit        int
	Offset       int
}

// List returns requests, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Atendimento, error) {
	where := map[string]string{}
	if filter.StatusPedido != "" {
		where["STATUS_PEDIDO"] = string(filter.StatusPedido)
	}
	if filter.TipoPedido != "" {
		where["TIPO_PEDIDO"] = string(filter.TipoPedido)
	}
	if filter.CPF != "" {
		where["CPF"] = workflow.NormalizeCPF(filter.CPF)
	}
	recs, err := s.store.List(ctx, entity.KindAtendimento, entity.ListFilter{Where: where, Limit: filter.Limit, Offset: filter.Offset})
	if err != nil {
		return nil, err
	}
	out := make([]Atendimento, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *FromRecord(rec))
	}
	return out, nil
}

// Board groups requests by kanban bucket.
type Board map[workflow.Bucket][]Atendimento

// Kanban classifies every request for the UTC date of now.
func (s *Service) Kanban(ctx context.Context, now time.Time) (Board, error) {
	all, err := s.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	board := make(Board, len(workflow.Buckets))
	for _, b := range workflow.Buckets {
		board[b] = []Atendimento{}
	}
	for _, a := range all {
		bucket := workflow.Classify(a.BucketInput(), now)
		if bucket == "" {
			s.logger.Warn("atendimento with unknown status left off the board",
				zap.String("id", a.ID), zap.String("status_pedido", string(a.StatusPedido)))
			continue
		}
		board[bucket] = append(board[bucket], a)
	}
	return board, nil
}

// Load reads a request inside a transaction.
func Load(ctx context.Context, r *entity.Repo, id string) (*Atendimento, error) {
	rec, err := r.Get(ctx, entity.KindAtendimento, id)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec), nil
}

// CheckVersion fails with ErrStale when expected is set and differs from
// the stored version.
func CheckVersion(a *Atendimento, expected int) error {
	if expected > 0 && expected != a.Versao {
		return fmt.Errorf("%w: atendimento %s está na versão %d, esperada %d", apperrors.ErrStale, a.ID, a.Versao, expected)
	}
	return nil
}

// MarkCompleted flips STATUS_AGENDAMENTO to Concluído inside the caller's
// transaction.
func MarkCompleted(ctx context.Context, r *entity.Repo, a *Atendimento) (*Atendimento, error) {
	rec, err := r.Update(ctx, entity.KindAtendimento, a.ID, map[string]any{
		"STATUS_AGENDAMENTO": string(workflow.SchedulingConcluido),
	})
	if err != nil {
		return nil, err
	}
	return FromRecord(rec), nil
}
