package entity

import "github.com/simas-gestao/simas/internal/workflow"

var atendimentoDerived = []string{"TIPO_DE_ACAO", "ENTIDADE_ALVO", "STATUS_AGENDAMENTO"}

// deriveAtendimento recomputes the workflow metadata of an Atendimento row
// from its status, type and scheduled date. An executed request stays
// Concluído.
func deriveAtendimento(rec Record) {
	m := workflow.DeriveMetadata(workflow.Input{
		StatusPedido:    workflow.StatusPedido(rec.String("STATUS_PEDIDO")),
		TipoPedido:      workflow.TipoPedido(rec.String("TIPO_PEDIDO")),
		DataAgendamento: rec.String("DATA_AGENDAMENTO"),
	})
	rec["TIPO_DE_ACAO"] = string(m.TipoDeAcao)
	rec["ENTIDADE_ALVO"] = string(m.EntidadeAlvo)
	if workflow.SchedulingStatus(rec.String("STATUS_AGENDAMENTO")) != workflow.SchedulingConcluido {
		rec["STATUS_AGENDAMENTO"] = string(m.StatusAgendamento)
	}
}
