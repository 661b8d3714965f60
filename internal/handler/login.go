package handler

import (
	"log/slog"
	"net/http"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/store"
)

// LoginPage is the template data for the login form.
type LoginPage struct {
	BasePage
	Roles []store.Role
}

// LoginHandler renders the login form. Submissions go to auth.Handlers.Login.
type LoginHandler struct {
	sessions *auth.Sessions
	csrf     *auth.CSRF
	log      *slog.Logger
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(s *auth.Sessions, csrf *auth.CSRF, log *slog.Logger) *LoginHandler {
	return &LoginHandler{sessions: s, csrf: csrf, log: logging.Or(log)}
}

// Show serves GET /auth/login. Users already logged in go to the dashboard;
// an expired login is destroyed before the form is issued.
func (h *LoginHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions.IsAuthenticated(ctx) {
		if !h.sessions.IsExpired(ctx, 0) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if err := h.sessions.Destroy(ctx); err != nil {
			h.log.Error("destroy expired session", logging.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.sessions.Flash(ctx, auth.NoticeSessionExpired)
	}
	base, err := newBasePage(r, h.sessions, h.csrf, auth.LoginCSRFName)
	if err != nil {
		h.log.Error("issue login csrf token", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	base.User = nil
	render(w, "login.html", LoginPage{BasePage: base, Roles: store.Roles})
}
