package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", apperrors.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", apperrors.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", apperrors.ErrConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", apperrors.ErrStale), http.StatusConflict},
		{fmt.Errorf("x: %w", apperrors.ErrBusinessRule), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/x", nil)
	Error(w, zap.NewNop(), r, errors.New("sql: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.NotContains(t, env.Message, "sql")
}

func TestErrorExposesDomainMessage(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/x", nil)
	Error(w, zap.NewNop(), r, fmt.Errorf("%w: justificativa obrigatória", apperrors.ErrValidation))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Contains(t, env.Message, "justificativa")
}

func TestDecodeKeepsNumbers(t *testing.T) {
	r := httptest.NewRequest("POST", "/x", strings.NewReader(`{"SALARIO": 1500.50}`))
	var body map[string]any
	require.NoError(t, Decode(r, &body))
	assert.Equal(t, json.Number("1500.50"), body["SALARIO"])
}

func TestDecodeInvalid(t *testing.T) {
	r := httptest.NewRequest("POST", "/x", strings.NewReader(`{`))
	var body map[string]any
	err := Decode(r, &body)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
