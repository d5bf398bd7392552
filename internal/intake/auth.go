package intake

import (
	"context"
	"net/http"
	"strings"

	"github.com/ghadeerreda0-lab/Bot-New/internal/security"
	"github.com/google/uuid"
)

const (
	scopeSMS   = security.ScopeSMS
	scopeAdmin = security.ScopeAdmin
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

// requireScope accepts a Bearer intake token carrying scope. Admin tokens
// pass every scope.
func (s *Server) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			claims, err := security.ValidateIntakeToken(strings.TrimSpace(strings.TrimPrefix(raw, "Bearer ")), s.cfg.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}
			if !claims.HasScope(scope) && !claims.HasScope(scopeAdmin) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "token lacks scope "+scope, nil)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFrom(ctx context.Context) *security.IntakeClaims {
	claims, _ := ctx.Value(claimsKey).(*security.IntakeClaims)
	return claims
}

// withRequestID keeps an incoming X-Request-ID or assigns a fresh one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
