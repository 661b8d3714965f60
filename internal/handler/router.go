package handler

import (
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/dal"
)

// Deps holds all dependencies required to build the HTTP router.
type Deps struct {
	SessionManager *scs.SessionManager
	Sessions       *auth.Sessions
	CSRF           *auth.CSRF
	Guard          *auth.Guard
	AuthHandlers   *auth.Handlers
	DB             *dal.DB
	Logger         *slog.Logger
}

// NewRouter assembles the full chi router with all middleware and routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Standard middleware. RealIP must run before the session fingerprint is read.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Operational endpoints; no session needed.
	r.Get("/healthz", Health(deps.DB))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Use(deps.DB.Middleware)

		// Auth routes (no auth required)
		login := NewLoginHandler(deps.Sessions, deps.CSRF, deps.Logger)
		r.Get(auth.LoginPath, login.Show)
		r.With(deps.CSRF.Protect(auth.LoginCSRFName)).Post(auth.LoginPath, deps.AuthHandlers.Login)
		r.With(deps.CSRF.Protect(auth.DefaultCSRFName)).Post("/auth/logout", deps.AuthHandlers.Logout)

		// Authenticated routes
		dashboard := NewDashboardHandler(deps.Sessions, deps.CSRF, deps.Logger)
		r.Group(func(r chi.Router) {
			r.Use(deps.Guard.Middleware)
			r.Get("/", dashboard.Show)
		})
	})

	return r
}
