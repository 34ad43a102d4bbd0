package workflow

import (
	"fmt"

	"github.com/simas-gestao/simas/internal/apperrors"
)

// allowedTransitions lists the STATUS_PEDIDO moves a reviewer may make.
// Declinado is terminal.
var allowedTransitions = map[StatusPedido][]StatusPedido{
	StatusAguardando: {StatusAguardando, StatusAcatado, StatusDeclinado},
	StatusAcatado:    {StatusAcatado, StatusDeclinado},
	StatusDeclinado:  nil,
}

// CheckTransition validates a status change. Executed requests are frozen.
func CheckTransition(from, to StatusPedido, agendamento SchedulingStatus) error {
	if agendamento == SchedulingConcluido {
		return fmt.Errorf("%w: atendimento já executado não pode ser alterado", apperrors.ErrConflict)
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("%w: status atual desconhecido %q", apperrors.ErrBusinessRule, from)
	}
	for _, s := range next {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: transição de %q para %q não permitida", apperrors.ErrBusinessRule, from, to)
}
