// Package workflow holds the pure rules of the Atendimento lifecycle:
// metadata derivation, kanban classification, status transitions and
// request validation. Nothing here touches storage.
package workflow

// StatusPedido is the reviewer's decision on a request.
type StatusPedido string

const (
	StatusAguardando StatusPedido = "Aguardando"
	StatusAcatado    StatusPedido = "Acatado"
	StatusDeclinado  StatusPedido = "Declinado"
)

// TipoPedido is the kind of personnel request.
type TipoPedido string

const (
	TipoContratacao              TipoPedido = "Contratação"
	TipoPromocaoContratado       TipoPedido = "Promoção (Contratado)"
	TipoMudancaContratado        TipoPedido = "Mudança (Contratado)"
	TipoDemissao                 TipoPedido = "Demissão"
	TipoAlocacaoServidor         TipoPedido = "Alocação de Servidor"
	TipoMudancaAlocacaoServidor  TipoPedido = "Mudança de Alocação (Servidor)"
	TipoNomeacaoComissionado     TipoPedido = "Nomeação de Cargo Comissionado"
	TipoExoneracaoComissionado   TipoPedido = "Exoneração de Cargo Comissionado"
	TipoExoneracaoServicoPublico TipoPedido = "Exoneração do Serviço Público"
	TipoReservaVaga              TipoPedido = "Reserva de Vaga"
	TipoOrientacao               TipoPedido = "Orientação"
	TipoOutro                    TipoPedido = "Outro"
)

// TiposPedido lists every request type accepted on intake.
var TiposPedido = []TipoPedido{
	TipoContratacao,
	TipoPromocaoContratado,
	TipoMudancaContratado,
	TipoDemissao,
	TipoAlocacaoServidor,
	TipoMudancaAlocacaoServidor,
	TipoNomeacaoComissionado,
	TipoExoneracaoComissionado,
	TipoExoneracaoServicoPublico,
	TipoReservaVaga,
	TipoOrientacao,
	TipoOutro,
}

// Remetentes lists the accepted request origins.
var Remetentes = []string{
	"Gabinete do Prefeito",
	"Secretaria de Administração",
	"Secretaria de Educação",
	"Secretaria de Saúde",
	"Secretaria de Obras",
	"Ouvidoria",
	"Próprio Interessado",
	"Outro",
}

// ActionKind is the automated effect a request will trigger.
type ActionKind string

const (
	ActionNenhuma  ActionKind = "NENHUMA"
	ActionCriar    ActionKind = "CRIAR"
	ActionEditar   ActionKind = "EDITAR"
	ActionInativar ActionKind = "INATIVAR"
)

// TargetEntity is the entity type an action applies to.
type TargetEntity string

const (
	TargetNenhuma     TargetEntity = "NENHUMA"
	TargetAtendimento TargetEntity = "Atendimento"
	TargetContrato    TargetEntity = "Contrato"
	TargetProtocolo   TargetEntity = "Protocolo"
	TargetAlocacao    TargetEntity = "Alocacao"
	TargetNomeacao    TargetEntity = "Nomeacao"
	TargetServidor    TargetEntity = "Servidor"
)

// SchedulingStatus tracks whether the scheduled action has run.
type SchedulingStatus string

const (
	SchedulingNA        SchedulingStatus = "N/A"
	SchedulingPendente  SchedulingStatus = "Pendente"
	SchedulingConcluido SchedulingStatus = "Concluído"
)
