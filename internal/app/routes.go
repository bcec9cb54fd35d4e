package app

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/galvanai/portal/internal/flash"
	"github.com/galvanai/portal/internal/handler"
	"github.com/galvanai/portal/internal/middleware"
	"github.com/galvanai/portal/internal/web"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(app.imageOrigins()...))

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS)))

	// Health check
	r.Get("/healthz", handler.Health(app.store))

	base := handler.NewBaseHandler(web.Templates, flash.Writer{Secure: app.config.SecureCookies})
	authHandler := handler.NewAuthHandler(base, app.backend, app.sessions, app.config.MaxUploadBytes())
	profileHandler := handler.NewProfileHandler(base, app.backend)
	dashboardHandler := handler.NewDashboardHandler(base, app.backend, app.sessions, app.pictureBase, app.config.MaxUploadBytes())

	r.Group(func(r chi.Router) {
		r.Use(app.sessions.Middleware)

		r.Get("/", base.Home)
		r.Get("/login", authHandler.LoginPage)
		r.Get("/register", authHandler.RegisterPage)
		r.Get("/verify-otp", authHandler.VerifyPage)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.PerMinute(app.config.AuthRateLimitPerMinute), app.config.AuthRateLimitBurst))
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/verify-otp", authHandler.Verify)
		})

		// Signed-in pages
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAccess)

			r.Get("/profile", profileHandler.Page)
			r.Get("/admin/dashboard", dashboardHandler.Dashboard)

			// Superadmin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSuperAdmin())

				r.Get("/admin/users/new", dashboardHandler.NewUser)
				r.Post("/admin/users", dashboardHandler.CreateUser)
				r.Get("/admin/users/{id}/edit", dashboardHandler.EditUser)
				r.Post("/admin/users/{id}", dashboardHandler.UpdateUser)
				r.Get("/admin/users/{id}/delete", dashboardHandler.DeletePage)
				r.Post("/admin/users/{id}/delete", dashboardHandler.Delete)
			})
		})
	})

	return otelhttp.NewHandler(r, "portal")
}

// imageOrigins lists the backend origins profile pictures are served from.
func (app *App) imageOrigins() []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range []string{app.config.BackendPublicURL, app.config.BackendURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		if !seen[origin] {
			seen[origin] = true
			out = append(out, origin)
		}
	}
	return out
}
