package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/simas-gestao/simas/internal/apperrors"
)

// NewRequest is the intake payload of an Atendimento.
type NewRequest struct {
	ID              string     `json:"ID_ATENDIMENTO" validate:"omitempty,uuid"`
	CPF             string     `json:"CPF" validate:"required,cpf"`
	TipoPedido      TipoPedido `json:"TIPO_PEDIDO" validate:"required,tipo_pedido"`
	Remetente       string     `json:"REMETENTE" validate:"required,remetente"`
	Responsavel     string     `json:"RESPONSAVEL" validate:"max=120"`
	DataAgendamento string     `json:"DATA_AGENDAMENTO" validate:"omitempty,isodate"`
	IDVaga          string     `json:"ID_VAGA"`
}

// StatusChange is a reviewer's edit of an existing Atendimento. Nil pointer
// fields are left unchanged; Versao 0 skips the optimistic-lock check.
type StatusChange struct {
	StatusPedido    StatusPedido `json:"STATUS_PEDIDO" validate:"required,oneof=Aguardando Acatado Declinado"`
	Justificativa   string       `json:"JUSTIFICATIVA" validate:"required_if=StatusPedido Declinado,max=2000"`
	DataAgendamento *string      `json:"DATA_AGENDAMENTO"`
	Responsavel     *string      `json:"RESPONSAVEL"`
	Versao          int          `json:"VERSAO" validate:"min=0"`
}

// Validator checks workflow payloads.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the SIMAS-specific tags.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return ValidCPF(fl.Field().String())
	})
	_ = v.RegisterValidation("tipo_pedido", func(fl validator.FieldLevel) bool {
		_, ok := CanonicalTipoPedido(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("remetente", func(fl validator.FieldLevel) bool {
		_, ok := CanonicalRemetente(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(NewRequest)
		tipo, _ := CanonicalTipoPedido(string(req.TipoPedido))
		hasVaga := strings.TrimSpace(req.IDVaga) != ""
		if tipo == TipoReservaVaga && !hasVaga {
			sl.ReportError(req.IDVaga, "ID_VAGA", "IDVaga", "required_for_reserva", "")
		}
		if tipo != TipoReservaVaga && hasVaga {
			sl.ReportError(req.IDVaga, "ID_VAGA", "IDVaga", "only_for_reserva", "")
		}
	}, NewRequest{})
	return &Validator{v: v}
}

// NewRequest validates and canonicalizes an intake payload in place.
func (val *Validator) NewRequest(req *NewRequest) error {
	if err := val.v.Struct(req); err != nil {
		return wrapValidation(err)
	}
	req.CPF = NormalizeCPF(req.CPF)
	req.TipoPedido, _ = CanonicalTipoPedido(string(req.TipoPedido))
	req.Remetente, _ = CanonicalRemetente(req.Remetente)
	req.IDVaga = strings.TrimSpace(req.IDVaga)
	req.DataAgendamento = strings.TrimSpace(req.DataAgendamento)
	if req.DataAgendamento != "" {
		d, _ := ParseDate(req.DataAgendamento)
		req.DataAgendamento = d.Format(DateLayout)
	}
	return nil
}

// StatusChange validates a reviewer edit.
func (val *Validator) StatusChange(ch *StatusChange) error {
	if err := val.v.Struct(ch); err != nil {
		return wrapValidation(err)
	}
	if ch.StatusPedido == StatusDeclinado && strings.TrimSpace(ch.Justificativa) == "" {
		return fmt.Errorf("%w: JUSTIFICATIVA é obrigatória ao declinar", apperrors.ErrValidation)
	}
	if ch.DataAgendamento != nil && strings.TrimSpace(*ch.DataAgendamento) != "" {
		d, err := ParseDate(*ch.DataAgendamento)
		if err != nil {
			return fmt.Errorf("%w: DATA_AGENDAMENTO: %v", apperrors.ErrValidation, err)
		}
		formatted := d.Format(DateLayout)
		ch.DataAgendamento = &formatted
	}
	return nil
}

var fieldMessages = map[string]string{
	"required":             "é obrigatório",
	"required_if":          "é obrigatório",
	"cpf":                  "não é um CPF válido",
	"tipo_pedido":          "não é um tipo de pedido conhecido",
	"remetente":            "não é um remetente conhecido",
	"isodate":              "deve estar no formato AAAA-MM-DD",
	"oneof":                "tem valor não permitido",
	"uuid":                 "deve ser um UUID",
	"max":                  "excede o tamanho máximo",
	"min":                  "abaixo do mínimo",
	"required_for_reserva": "é obrigatório para Reserva de Vaga",
	"only_for_reserva":     "só pode ser informado para Reserva de Vaga",
}

func wrapValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "é inválido"
		}
		msgs = append(msgs, fe.Field()+" "+msg)
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(msgs, "; "))
}
