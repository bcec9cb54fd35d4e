package middleware

import (
	"net/http"

	"github.com/galvanai/portal/internal/model"
	"github.com/galvanai/portal/internal/session"
)

// RequireRole returns middleware that allows only sessions holding role.
// Returns 403 Forbidden for any other role. The backend authorizes every
// call on its own; this only keeps the pages out of reach.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.FromContext(r.Context()).Role != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin returns middleware that allows only superadmin sessions.
func RequireSuperAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleSuperAdmin)
}
