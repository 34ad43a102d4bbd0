// Package execution carries out the automated effect of an approved
// Atendimento. The entity change, its audit entries and the flip to
// Concluído commit in one transaction.
package execution

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/atendimento"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/metrics"
	"github.com/simas-gestao/simas/internal/session"
	"github.com/simas-gestao/simas/internal/workflow"
)

var (
	// ErrNothingToExecute is returned for requests whose derived action is NENHUMA.
	ErrNothingToExecute = fmt.Errorf("%w: atendimento sem ação automática a executar", apperrors.ErrBusinessRule)
	// ErrUnsupportedEffect is returned for an action and entity pair with no handler.
	ErrUnsupportedEffect = fmt.Errorf("%w: combinação de ação e entidade não suportada", apperrors.ErrBusinessRule)
)

// Request is the data collected from the user to complete the effect.
type Request struct {
	// Payload holds entity fields and foreign-key selections.
	Payload map[string]any `json:"payload"`
	// Motivo is the archive reason for deactivations and contract
	// replacements. Defaults to the request type.
	Motivo string `json:"MOTIVO,omitempty"`
	// Versao, when set, must match the stored Atendimento version.
	Versao int `json:"VERSAO,omitempty"`
}

// Result is the outcome of a successful execution.
type Result struct {
	Atendimento *atendimento.Atendimento `json:"atendimento"`
	Record      entity.Record            `json:"record,omitempty"`
}

// Executor runs scheduled effects.
type Executor struct {
	store  *entity.Store
	logger *zap.Logger
}

// NewExecutor creates an Executor writing through store.
func NewExecutor(store *entity.Store, logger *zap.Logger) *Executor {
	return &Executor{store: store, logger: logger}
}

// Execute applies the effect of Atendimento id and marks it Concluído.
// Either both happen or neither does. A request that already ran is
// rejected with ErrConflict.
func (e *Executor) Execute(ctx context.Context, sess session.Session, id string, req Request) (*Result, error) {
	if err := sess.RequireWrite(); err != nil {
		return nil, err
	}

	var (
		res  *Result
		meta workflow.Metadata
	)
	err := e.store.Do(ctx, sess, func(r *entity.Repo) error {
		a, err := atendimento.Load(ctx, r, id)
		if err != nil {
			return err
		}
		if err := checkExecutable(a, req.Versao, r); err != nil {
			return err
		}

		// Dispatch on freshly derived metadata, never on a stored copy.
		fresh := *a
		fresh.Rederive()
		meta = fresh.Metadata()

		apply, err := dispatch(meta.TipoDeAcao, meta.EntidadeAlvo)
		if err != nil {
			return err
		}
		rec, err := apply(ctx, r, a, req)
		if err != nil {
			return err
		}

		done, err := atendimento.MarkCompleted(ctx, r, a)
		if err != nil {
			return err
		}
		res = &Result{Atendimento: done, Record: rec}
		return nil
	})

	metrics.Execution(string(meta.TipoDeAcao), string(meta.EntidadeAlvo), err)
	if err != nil {
		e.logger.Warn("execution failed",
			zap.String("id", id),
			zap.String("tipo_de_acao", string(meta.TipoDeAcao)),
			zap.String("entidade_alvo", string(meta.EntidadeAlvo)),
			zap.Error(err))
		return nil, err
	}
	e.logger.Info("execution completed",
		zap.String("id", id),
		zap.String("tipo_de_acao", string(meta.TipoDeAcao)),
		zap.String("entidade_alvo", string(meta.EntidadeAlvo)),
		zap.String("usuario", sess.UserID))
	return res, nil
}

func checkExecutable(a *atendimento.Atendimento, versao int, r *entity.Repo) error {
	if a.StatusAgendamento == workflow.SchedulingConcluido {
		return fmt.Errorf("%w: atendimento %s já foi executado", apperrors.ErrConflict, a.ID)
	}
	if a.StatusPedido != workflow.StatusAcatado {
		return fmt.Errorf("%w: apenas atendimentos acatados podem ser executados (status %s)", apperrors.ErrBusinessRule, a.StatusPedido)
	}
	if err := atendimento.CheckVersion(a, versao); err != nil {
		return err
	}
	if strings.TrimSpace(a.DataAgendamento) == "" {
		return ErrNothingToExecute
	}
	if workflow.IsFuture(a.DataAgendamento, r.Now()) {
		return fmt.Errorf("%w: execução agendada para %s", apperrors.ErrBusinessRule, a.DataAgendamento)
	}
	return nil
}

type effectFunc func(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, req Request) (entity.Record, error)

// dispatch picks the one handler for an action and entity pair.
func dispatch(action workflow.ActionKind, target workflow.TargetEntity) (effectFunc, error) {
	switch action {
	case workflow.ActionNenhuma:
		return nil, ErrNothingToExecute
	case workflow.ActionInativar:
		switch target {
		case workflow.TargetServidor:
			return inactivateServidor, nil
		}
	case workflow.ActionEditar:
		switch target {
		case workflow.TargetContrato:
			return replaceContrato, nil
		case workflow.TargetAlocacao:
			return appendAlocacao, nil
		case workflow.TargetProtocolo, workflow.TargetNomeacao, workflow.TargetServidor:
			return updateInPlace(entity.Kind(target)), nil
		}
	case workflow.ActionCriar:
		switch target {
		case workflow.TargetContrato, workflow.TargetProtocolo, workflow.TargetNomeacao:
			return create(entity.Kind(target)), nil
		case workflow.TargetAlocacao:
			return appendAlocacao, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedEffect, action, target)
}

// defaultDateColumn is filled with DATA_AGENDAMENTO when the payload
// leaves it out.
var defaultDateColumn = map[entity.Kind]string{
	entity.KindContrato:  "DATA_INICIO",
	entity.KindProtocolo: "DATA_PROTOCOLO",
	entity.KindAlocacao:  "DATA_INICIO",
	entity.KindNomeacao:  "DATA_NOMEACAO",
}

// newRecordData builds the fields of a record created for a.
func newRecordData(kind entity.Kind, a *atendimento.Atendimento, payload map[string]any) map[string]any {
	def := entity.MustLookup(kind)
	data := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		data[k] = v
	}
	if def.GeneratedKey {
		delete(data, def.PrimaryKey)
	}
	data["CPF"] = a.CPF
	if col, ok := defaultDateColumn[kind]; ok && isBlank(data[col]) {
		data[col] = a.DataAgendamento
	}
	if kind == entity.KindProtocolo && isBlank(data["TIPO_PROTOCOLO"]) {
		data["TIPO_PROTOCOLO"] = string(a.TipoPedido)
	}
	return data
}

func create(kind entity.Kind) effectFunc {
	return func(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, req Request) (entity.Record, error) {
		return r.Create(ctx, kind, newRecordData(kind, a, req.Payload))
	}
}

// appendAlocacao records a new allocation. Allocation history is
// append-only, so changing an allocation also creates a row.
func appendAlocacao(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, req Request) (entity.Record, error) {
	data := newRecordData(entity.KindAlocacao, a, req.Payload)
	srv, err := servidorFor(ctx, r, a, req.Payload)
	if err != nil {
		return nil, err
	}
	data["MATRICULA"] = srv.String("MATRICULA")
	return r.Create(ctx, entity.KindAlocacao, data)
}

// inactivateServidor moves the Servidor to the inactive table.
func inactivateServidor(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, req Request) (entity.Record, error) {
	srv, err := servidorFor(ctx, r, a, req.Payload)
	if err != nil {
		return nil, err
	}
	return r.Archive(ctx, entity.KindServidor, srv.String("MATRICULA"), reason(a, req))
}

// replaceContrato archives the current contract and creates a new one
// carrying the old fields overlaid with the payload.
func replaceContrato(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, req Request) (entity.Record, error) {
	current, err := selectFor(ctx, r, entity.KindContrato, a, req.Payload)
	if err != nil {
		return nil, err
	}
	if _, err := r.Archive(ctx, entity.KindContrato, current.String("ID_CONTRATO"), reason(a, req)); err != nil {
		return nil, err
	}

	merged := map[string]any{}
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range req.Payload {
		merged[k] = v
	}
	if isBlank(req.Payload["DATA_INICIO"]) {
		delete(merged, "DATA_INICIO")
	}
	return r.Create(ctx, entity.KindContrato, newRecordData(entity.KindContrato, a, merged))
}

// updateInPlace edits the requester's record of kind, named by the
// payload's primary key or found by CPF. The record stays with the
// requester's CPF.
func updateInPlace(kind entity.Kind) effectFunc {
	return func(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, req Request) (entity.Record, error) {
		def := entity.MustLookup(kind)
		current, err := selectFor(ctx, r, kind, a, req.Payload)
		if err != nil {
			return nil, err
		}
		id := current.String(def.PrimaryKey)

		changes := make(map[string]any, len(req.Payload))
		for k, v := range req.Payload {
			changes[k] = v
		}
		delete(changes, def.PrimaryKey)
		if def.HasColumn("CPF") {
			changes["CPF"] = a.CPF
		}
		return r.Update(ctx, kind, id, changes)
	}
}

func servidorFor(ctx context.Context, r *entity.Repo, a *atendimento.Atendimento, payload map[string]any) (entity.Record, error) {
	return selectFor(ctx, r, entity.KindServidor, a, payload)
}

// selectFor resolves the live record of kind the request refers to: the
// primary key chosen in the payload, or the only record of the subject
// CPF. The record must belong to the subject.
func selectFor(ctx context.Context, r *entity.Repo, kind entity.Kind, a *atendimento.Atendimento, payload map[string]any) (entity.Record, error) {
	def := entity.MustLookup(kind)
	if id := entity.StringValue(payload[def.PrimaryKey]); id != "" {
		rec, err := r.Get(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if rec.String("CPF") != a.CPF {
			return nil, fmt.Errorf("%w: %s %s não pertence ao CPF %s", apperrors.ErrBusinessRule, kind, id, a.CPF)
		}
		return rec, nil
	}

	recs, err := r.Find(ctx, kind, "CPF", a.CPF)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("%w: nenhum %s ativo para o CPF %s", apperrors.ErrBusinessRule, kind, a.CPF)
	case 1:
		return recs[0], nil
	default:
		return nil, fmt.Errorf("%w: CPF %s possui mais de um %s; informe %s", apperrors.ErrValidation, a.CPF, kind, def.PrimaryKey)
	}
}

func reason(a *atendimento.Atendimento, req Request) string {
	if m := strings.TrimSpace(req.Motivo); m != "" {
		return m
	}
	return fmt.Sprintf("%s (atendimento %s)", a.TipoPedido, a.ID)
}

func isBlank(v any) bool {
	return entity.StringValue(v) == ""
}
