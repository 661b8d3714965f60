package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/metrics"
	"github.com/carnet-scolaire/carnet/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

const LoginPath = "/auth/login"

// Notices shown on the login page after a forced logout.
const (
	NoticeSessionExpired = "Your session has expired. Please log in again."
	NoticeSessionRevoked = "Your session was closed for security reasons. Please log in again."
)

// Guard protects pages that require an authenticated session.
type Guard struct {
	sessions *Sessions
	log      *slog.Logger
}

// NewGuard creates a new Guard.
func NewGuard(s *Sessions, log *slog.Logger) *Guard {
	return &Guard{sessions: s, log: logging.Or(log)}
}

// RequireLogin returns the current user, or writes a redirect to the login
// page and returns false. Checks run in this order: authenticated, not
// expired, periodic id rotation, fingerprint match. Only then is authTime
// refreshed.
func (g *Guard) RequireLogin(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	ctx := r.Context()

	user := g.sessions.CurrentUser(ctx)
	if user == nil {
		g.sessions.SetRedirectAfterLogin(ctx, r.URL.RequestURI())
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return nil, false
	}

	if g.sessions.IsExpired(ctx, 0) {
		g.invalidate(w, r, user, "expired", NoticeSessionExpired, true)
		return nil, false
	}

	if _, err := g.sessions.RotateIDPeriodically(ctx, 0); err != nil {
		g.log.Error("session rotation failed", logging.UserID(user.ID), logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}

	fp := FingerprintFromRequest(r)
	if !g.sessions.VerifyFingerprint(ctx, fp) {
		g.invalidate(w, r, user, "fingerprint_mismatch", NoticeSessionRevoked, false)
		return nil, false
	}

	g.sessions.RefreshAuthTime(ctx)
	return user, true
}

// invalidate destroys the session in this request, then starts a fresh
// anonymous one carrying the notice and, if remember is set, the page to
// return to.
func (g *Guard) invalidate(w http.ResponseWriter, r *http.Request, user *store.User, reason, notice string, remember bool) {
	ctx := r.Context()
	metrics.SessionInvalidationsTotal.WithLabelValues(reason).Inc()
	cause := fmt.Errorf("%w: %s", ErrSessionInvalid, reason)

	level := slog.LevelInfo
	if reason != "expired" {
		level = slog.LevelWarn
	}
	g.log.Log(ctx, level, "session invalidated",
		logging.Security("session_"+reason),
		logging.Error(cause),
		logging.UserID(user.ID),
		logging.ClientIP(FingerprintFromRequest(r).ClientIP),
		logging.Path(r.URL.Path))

	if err := g.sessions.Destroy(ctx); err != nil {
		g.log.Error("session destroy failed", logging.Error(err))
	}
	if remember {
		g.sessions.SetRedirectAfterLogin(ctx, r.URL.RequestURI())
	}
	g.sessions.Flash(ctx, notice)
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// Middleware runs RequireLogin and, on success, sets the *store.User on the
// request context.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := g.RequireLogin(w, r)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns a middleware that requires the user to have the given role.
// Must be used after Middleware.
func RequireRole(role store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasRole(UserFromContext(r.Context()), role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext retrieves the authenticated user from the context.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(UserContextKey).(*store.User)
	return u
}
