// Package apperrors defines the sentinel errors shared across SIMAS services.
// Domain packages wrap these with context; the HTTP layer maps them to status codes.
// Messages are user-facing and therefore in Portuguese.
package apperrors

import "errors"

var (
	ErrNotFound     = errors.New("não encontrado")
	ErrConflict     = errors.New("conflito")
	ErrValidation   = errors.New("dados inválidos")
	ErrBusinessRule = errors.New("regra de negócio violada")
	ErrStale        = errors.New("registro alterado desde a leitura")
	ErrForbidden    = errors.New("acesso negado")
)
