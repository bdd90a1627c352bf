package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// Middleware wires bearer-token authentication and role checks.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate extracts the bearer token, verifies it and stores the
// principal in the request context. Requests without a token pass through
// unauthenticated; RequireRoles rejects them later.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.Service.Identify(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		principal := &shared.Principal{
			UserID: user.ID,
			Email:  user.Email,
			Role:   string(user.Role),
			Active: user.IsActive,
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRoles guards a route subtree. The check is hierarchical: a caller
// passes when its role level is at least the minimum level among the
// declared roles. Each failure mode responds distinctly.
func (m Middleware) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if err := CheckAccess(principal, roles...); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("access denied", slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckAccess is the pure role-hierarchy check. It distinguishes between
// missing authentication, a missing role, an inactive account and an
// insufficient role level.
func CheckAccess(principal *shared.Principal, required ...Role) error {
	if principal == nil {
		return fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized)
	}
	if principal.Role == "" {
		return fmt.Errorf("%w: account has no role assigned", httpx.ErrForbidden)
	}
	if !principal.Active {
		return fmt.Errorf("%w: account is deactivated", httpx.ErrForbidden)
	}
	if !Allowed(Role(principal.Role), required...) {
		return fmt.Errorf("%w: role %s is not sufficient", httpx.ErrForbidden, principal.Role)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
