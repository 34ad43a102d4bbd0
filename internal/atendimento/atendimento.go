// Package atendimento persists workflow requests. Derived fields are
// recomputed on every write and never accepted from callers.
package atendimento

import (
	"strconv"

	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/workflow"
)

// Atendimento is a workflow request.
type Atendimento struct {
	ID                string                    `json:"ID_ATENDIMENTO"`
	CPF               string                    `json:"CPF"`
	TipoPedido        workflow.TipoPedido       `json:"TIPO_PEDIDO"`
	Remetente         string                    `json:"REMETENTE"`
	Responsavel       string                    `json:"RESPONSAVEL,omitempty"`
	StatusPedido      workflow.StatusPedido     `json:"STATUS_PEDIDO"`
	Justificativa     string                    `json:"JUSTIFICATIVA,omitempty"`
	DataAgendamento   string                    `json:"DATA_AGENDAMENTO,omitempty"`
	DataEntrada       string                    `json:"DATA_ENTRADA"`
	IDVaga            string                    `json:"ID_VAGA,omitempty"`
	TipoDeAcao        workflow.ActionKind       `json:"TIPO_DE_ACAO"`
	EntidadeAlvo      workflow.TargetEntity     `json:"ENTIDADE_ALVO"`
	StatusAgendamento workflow.SchedulingStatus `json:"STATUS_AGENDAMENTO"`
	Versao            int                       `json:"VERSAO"`
}

// Rederive recomputes the derived fields from status, type and date.
func (a *Atendimento) Rederive() {
	m := workflow.DeriveMetadata(workflow.Input{
		StatusPedido:    a.StatusPedido,
		TipoPedido:      a.TipoPedido,
		DataAgendamento: a.DataAgendamento,
	})
	a.TipoDeAcao = m.TipoDeAcao
	a.EntidadeAlvo = m.EntidadeAlvo
	a.StatusAgendamento = m.StatusAgendamento
}

// Metadata returns the derived fields as stored.
func (a *Atendimento) Metadata() workflow.Metadata {
	return workflow.Metadata{
		TipoDeAcao:        a.TipoDeAcao,
		EntidadeAlvo:      a.EntidadeAlvo,
		StatusAgendamento: a.StatusAgendamento,
	}
}

// BucketInput returns the fields the kanban classifier looks at.
func (a *Atendimento) BucketInput() workflow.BucketInput {
	return workflow.BucketInput{
		StatusPedido:      a.StatusPedido,
		StatusAgendamento: a.StatusAgendamento,
		DataAgendamento:   a.DataAgendamento,
	}
}

// Record converts a to an entity row. Empty optional fields become NULL.
func (a *Atendimento) Record() entity.Record {
	return entity.Record{
		"ID_ATENDIMENTO":     a.ID,
		"CPF":                a.CPF,
		"TIPO_PEDIDO":        string(a.TipoPedido),
		"REMETENTE":          optional(a.Remetente),
		"RESPONSAVEL":        optional(a.Responsavel),
		"STATUS_PEDIDO":      string(a.StatusPedido),
		"JUSTIFICATIVA":      optional(a.Justificativa),
		"DATA_AGENDAMENTO":   optional(a.DataAgendamento),
		"DATA_ENTRADA":       a.DataEntrada,
		"ID_VAGA":            optional(a.IDVaga),
		"TIPO_DE_ACAO":       string(a.TipoDeAcao),
		"ENTIDADE_ALVO":      string(a.EntidadeAlvo),
		"STATUS_AGENDAMENTO": string(a.StatusAgendamento),
		"VERSAO":             strconv.Itoa(a.Versao),
	}
}

// FromRecord converts a stored row.
func FromRecord(rec entity.Record) *Atendimento {
	versao, _ := strconv.Atoi(rec.String("VERSAO"))
	return &Atendimento{
		ID:                rec.String("ID_ATENDIMENTO"),
		CPF:               rec.String("CPF"),
		TipoPedido:        workflow.TipoPedido(rec.String("TIPO_PEDIDO")),
		Remetente:         rec.String("REMETENTE"),
		Responsavel:       rec.String("RESPONSAVEL"),
		StatusPedido:      workflow.StatusPedido(rec.String("STATUS_PEDIDO")),
		Justificativa:     rec.String("JUSTIFICATIVA"),
		DataAgendamento:   rec.String("DATA_AGENDAMENTO"),
		DataEntrada:       rec.String("DATA_ENTRADA"),
		IDVaga:            rec.String("ID_VAGA"),
		TipoDeAcao:        workflow.ActionKind(rec.String("TIPO_DE_ACAO")),
		EntidadeAlvo:      workflow.TargetEntity(rec.String("ENTIDADE_ALVO")),
		StatusAgendamento: workflow.SchedulingStatus(rec.String("STATUS_AGENDAMENTO")),
		Versao:            versao,
	}
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
