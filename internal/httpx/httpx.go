// Package httpx holds the JSON response envelope and error mapping shared
// by every SIMAS route package.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
)

// Envelope is the body of every mutating response: {success, message?, data?}.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes an unsuccessful envelope with the given status.
func Fail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}

// StatusFor maps an error to the HTTP status that describes it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrStale):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrBusinessRule):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a failed envelope. Unexpected errors are logged and
// reported with a generic message.
func Error(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		Fail(w, status, "erro interno do servidor")
		return
	}
	Fail(w, status, err.Error())
}

// Decode reads a JSON body into v. Numbers are kept as json.Number so
// snapshot values round-trip without float formatting.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", apperrors.ErrValidation, err)
	}
	return nil
}
