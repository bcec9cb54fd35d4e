package middleware

import (
	"net/http"

	"github.com/galvanai/portal/internal/session"
)

// RequireAccess redirects visitors without an access token to /login.
// It must run after session.Manager.Middleware.
func RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).SignedIn() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
