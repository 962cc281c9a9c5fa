package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/wardenhq/warden/internal/platform/httpx"
)

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Middleware resolves the bearer token to a principal in context. The
// console treats 401 as "session invalid" and logs out.
type Middleware struct {
	Tokens *TokenStore
	Logger *slog.Logger
}

// RequirePrincipal rejects requests without a resolvable principal.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := m.Tokens.Lookup(r.Context(), token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("bearer token rejected", slog.Any("error", err))
			}
			httpx.Fail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := ContextWithPrincipal(r.Context(), &principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
