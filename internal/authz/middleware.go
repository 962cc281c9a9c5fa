package authz

import (
	"log/slog"
	"net/http"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the current principal holds (module, action). Requests
// without a principal are unauthorized; denials are forbidden.
func (m Middleware) Require(module string, action store.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !m.Service.Can(r.Context(), principal.UserID, module, action) {
				if m.Logger != nil {
					m.Logger.Debug("authorization denied",
						slog.Int64("user_id", principal.UserID),
						slog.String("module", module),
						slog.String("action", string(action)))
				}
				httpx.Fail(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
