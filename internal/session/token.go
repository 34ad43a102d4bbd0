package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/httpx"
)

const issuer = "simas"

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// Authenticator validates HS256 session tokens.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator signing with secret.
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger, now: time.Now}
}

// Issue signs a token for s valid for ttl.
func (a *Authenticator) Issue(s Session, ttl time.Duration) (string, error) {
	if s.UserID == "" {
		return "", errors.New("user id is required")
	}
	if !s.Role.Valid() {
		return "", fmt.Errorf("invalid role %q", s.Role)
	}
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: s.Name,
		Role: s.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns the session it carries.
func (a *Authenticator) Parse(tokenString string) (Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("parsing token: %w", err)
	}
	if claims.Subject == "" {
		return Session{}, errors.New("token has no subject")
	}
	if !claims.Role.Valid() {
		return Session{}, fmt.Errorf("token has invalid role %q", claims.Role)
	}
	return Session{UserID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token (401) and stores
// the session in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			httpx.Fail(w, http.StatusUnauthorized, "autenticação necessária")
			return
		}

		s, err := a.Parse(tokenString)
		if err != nil {
			a.logger.Debug("rejected session token", zap.Error(err), zap.String("path", r.URL.Path))
			httpx.Fail(w, http.StatusUnauthorized, "sessão inválida ou expirada")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireRole rejects requests whose session role is not listed (403).
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "autenticação necessária")
				return
			}
			for _, role := range roles {
				if s.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Fail(w, http.StatusForbidden, "acesso negado: permissão insuficiente")
		})
	}
}
