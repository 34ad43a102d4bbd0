package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	token, err := a.Issue(Session{UserID: "ana", Name: "Ana", Role: RoleEditor}, time.Hour)
	require.NoError(t, err)

	s, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "ana", Name: "Ana", Role: RoleEditor}, s)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthenticator(testSecret, zap.NewNop()).Issue(Session{UserID: "ana", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = NewAuthenticator("another-secret-of-enough-length", zap.NewNop()).Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	a.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	token, err := a.Issue(Session{UserID: "ana", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	_, err = a.Parse(token)
	assert.Error(t, err)
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	_, err := a.Issue(Session{UserID: "ana", Role: "root"}, time.Hour)
	assert.Error(t, err)
	_, err = a.Issue(Session{Role: RoleAdmin}, time.Hour)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator(testSecret, zap.NewNop())
	var seen Session
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/api/Atendimento", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("GET", "/api/Atendimento", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := a.Issue(Session{UserID: "ana", Role: RoleLeitura}, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/api/Atendimento", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "ana", seen.UserID)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin, RoleEditor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"no session", context.Background(), http.StatusUnauthorized},
		{"reader", WithSession(context.Background(), Session{UserID: "u", Role: RoleLeitura}), http.StatusForbidden},
		{"editor", WithSession(context.Background(), Session{UserID: "u", Role: RoleEditor}), http.StatusNoContent},
		{"admin", WithSession(context.Background(), Session{UserID: "u", Role: RoleAdmin}), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", nil).WithContext(tt.ctx)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSessionPermissions(t *testing.T) {
	assert.NoError(t, Session{UserID: "u", Role: RoleEditor}.RequireWrite())
	assert.ErrorIs(t, Session{UserID: "u", Role: RoleLeitura}.RequireWrite(), apperrors.ErrForbidden)
	assert.ErrorIs(t, Session{Role: RoleAdmin}.RequireWrite(), apperrors.ErrForbidden)

	assert.NoError(t, Session{UserID: "u", Role: RoleAdmin}.RequireRestore())
	assert.ErrorIs(t, Session{UserID: "u", Role: RoleEditor}.RequireRestore(), apperrors.ErrForbidden)
	assert.NoError(t, System().RequireRestore())
}
