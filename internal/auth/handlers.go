package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/store"
)

// LoginCSRFName is the anti-forgery token name used by the login form.
const LoginCSRFName = "login"

const defaultAfterLogin = "/"

// Handlers provides the HTTP endpoints that change authentication state.
// The login form itself is rendered by the page handlers.
type Handlers struct {
	authn    *Authenticator
	sessions *Sessions
	log      *slog.Logger
}

// NewHandlers creates a new Handlers with the given dependencies.
func NewHandlers(a *Authenticator, s *Sessions, log *slog.Logger) *Handlers {
	return &Handlers{authn: a, sessions: s, log: logging.Or(log)}
}

// Login handles the login form submission. The CSRF token has already been
// verified by CSRF.Protect. Failures flash a generic notice and send the user
// back to the form.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	role, _ := store.ParseRole(r.PostFormValue("role")) // invalid roles fail in Login
	loginID := strings.TrimSpace(r.PostFormValue("login"))
	password := r.PostFormValue("password")

	if !h.authn.Login(r.Context(), FingerprintFromRequest(r), role, loginID, password) {
		h.sessions.Flash(r.Context(), ErrAuthenticationFailure.Error())
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, SafeRedirect(h.sessions.PopRedirectAfterLogin(r.Context())), http.StatusSeeOther)
}

// Logout destroys the session and redirects to the login page.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if u := h.sessions.CurrentUser(r.Context()); u != nil {
		h.log.Info("logout", logging.UserID(u.ID))
	}
	if err := h.sessions.Destroy(r.Context()); err != nil {
		http.Error(w, "logout error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// SafeRedirect returns target when it is a local absolute path, and "/"
// otherwise, so a stored redirect can never send the user off-site.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return defaultAfterLogin
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return defaultAfterLogin
	}
	if u.Path == LoginPath {
		return defaultAfterLogin
	}
	return target
}
