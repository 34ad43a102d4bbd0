// Package session carries the authenticated caller through SIMAS. A Session
// is extracted once at the HTTP boundary and passed explicitly into every
// service entry point.
package session

import (
	"context"
	"fmt"

	"github.com/simas-gestao/simas/internal/apperrors"
)

// Role is the caller's access level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleEditor  Role = "editor"
	RoleLeitura Role = "leitura"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleLeitura:
		return true
	}
	return false
}

// Session identifies the user behind a request.
type Session struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
}

// System is the session used by CLI maintenance commands.
func System() Session {
	return Session{UserID: "system", Name: "Sistema", Role: RoleAdmin}
}

// CanWrite reports whether the session may mutate records.
func (s Session) CanWrite() bool {
	return s.Role == RoleAdmin || s.Role == RoleEditor
}

// CanRestore reports whether the session may undo audited changes.
func (s Session) CanRestore() bool {
	return s.Role == RoleAdmin
}

// RequireWrite returns ErrForbidden unless the session may mutate records.
func (s Session) RequireWrite() error {
	if s.UserID == "" {
		return fmt.Errorf("%w: sessão sem usuário", apperrors.ErrForbidden)
	}
	if !s.CanWrite() {
		return fmt.Errorf("%w: perfil %q não pode alterar registros", apperrors.ErrForbidden, s.Role)
	}
	return nil
}

// RequireRestore returns ErrForbidden unless the session may restore.
func (s Session) RequireRestore() error {
	if s.UserID == "" || !s.CanRestore() {
		return fmt.Errorf("%w: apenas administradores podem restaurar registros", apperrors.ErrForbidden)
	}
	return nil
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by the auth middleware.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}
