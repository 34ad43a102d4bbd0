package workflow

import "strings"

// Input is the subset of an Atendimento the derived fields depend on.
type Input struct {
	StatusPedido    StatusPedido
	TipoPedido      TipoPedido
	DataAgendamento string
}

// Metadata holds the three derived Atendimento fields.
type Metadata struct {
	TipoDeAcao        ActionKind       `json:"TIPO_DE_ACAO"`
	EntidadeAlvo      TargetEntity     `json:"ENTIDADE_ALVO"`
	StatusAgendamento SchedulingStatus `json:"STATUS_AGENDAMENTO"`
}

type effect struct {
	action ActionKind
	target TargetEntity
}

// acceptedEffects maps an approved request type to its automated effect.
// Types missing here (Reserva de Vaga, Orientação, Outro, anything new)
// have no automated effect.
var acceptedEffects = map[TipoPedido]effect{
	TipoContratacao:              {ActionCriar, TargetContrato},
	TipoPromocaoContratado:       {ActionEditar, TargetContrato},
	TipoMudancaContratado:        {ActionEditar, TargetContrato},
	TipoDemissao:                 {ActionCriar, TargetProtocolo},
	TipoAlocacaoServidor:         {ActionCriar, TargetAlocacao},
	TipoMudancaAlocacaoServidor:  {ActionEditar, TargetAlocacao},
	TipoNomeacaoComissionado:     {ActionCriar, TargetNomeacao},
	TipoExoneracaoComissionado:   {ActionInativar, TargetServidor},
	TipoExoneracaoServicoPublico: {ActionInativar, TargetServidor},
}

// DeriveMetadata computes the derived fields for a request. It must be
// re-run whenever status, type or scheduled date change.
func DeriveMetadata(in Input) Metadata {
	if strings.TrimSpace(in.DataAgendamento) == "" {
		return Metadata{
			TipoDeAcao:        ActionNenhuma,
			EntidadeAlvo:      TargetNenhuma,
			StatusAgendamento: SchedulingNA,
		}
	}

	m := Metadata{
		TipoDeAcao:        ActionNenhuma,
		EntidadeAlvo:      TargetNenhuma,
		StatusAgendamento: SchedulingPendente,
	}
	switch in.StatusPedido {
	case StatusAguardando:
		m.TipoDeAcao = ActionCriar
		m.EntidadeAlvo = TargetAtendimento
	case StatusAcatado:
		if e, ok := acceptedEffects[in.TipoPedido]; ok {
			m.TipoDeAcao = e.action
			m.EntidadeAlvo = e.target
		}
	}
	return m
}

// HasAutomatedEffect reports whether an approved request of this type
// triggers an entity change.
func HasAutomatedEffect(t TipoPedido) bool {
	_, ok := acceptedEffects[t]
	return ok
}
