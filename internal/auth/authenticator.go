package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/metrics"
	"github.com/carnet-scolaire/carnet/internal/store"
)

// CredentialFinder looks up a stored credential by role and login.
type CredentialFinder interface {
	FindByLogin(ctx context.Context, role store.Role, loginID string) (*store.Credential, error)
}

// Authenticator checks credentials and establishes the authenticated session.
type Authenticator struct {
	creds    CredentialFinder
	sessions *Sessions
	log      *slog.Logger
}

func NewAuthenticator(creds CredentialFinder, s *Sessions, log *slog.Logger) *Authenticator {
	return &Authenticator{creds: creds, sessions: s, log: logging.Or(log)}
}

// Login verifies loginID and password against role's credential table. On
// success the session id is rotated, then the user, auth time and client
// fingerprint are stored. Every failure, including a lookup error, returns
// false without saying which factor was wrong.
func (a *Authenticator) Login(ctx context.Context, fp Fingerprint, role store.Role, loginID, password string) bool {
	attrs := []any{slog.String("role", role.String()), slog.String("login", loginID), logging.ClientIP(fp.ClientIP)}

	if !role.Valid() {
		a.fail(role, "invalid_role", attrs)
		return false
	}

	cred, err := a.creds.FindByLogin(ctx, role, loginID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		burnPasswordCheck(password)
		a.fail(role, "failure", attrs)
		return false
	case err != nil:
		metrics.LoginAttemptsTotal.WithLabelValues(roleLabel(role), "error").Inc()
		a.log.Error("credential lookup failed", append(attrs, logging.Error(err))...)
		return false
	}

	if !VerifyPassword(cred.PasswordHash, password) {
		a.fail(role, "failure", attrs)
		return false
	}

	if err := a.sessions.rotate(ctx); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(roleLabel(role), "error").Inc()
		a.log.Error("session rotation failed at login", append(attrs, logging.Error(err))...)
		return false
	}
	user := cred.User
	a.sessions.SetUser(ctx, &user)
	a.sessions.store.Put(ctx, SessionAuthTimeKey, a.sessions.now())
	a.sessions.BindFingerprint(ctx, fp)

	metrics.LoginAttemptsTotal.WithLabelValues(roleLabel(role), "success").Inc()
	a.log.Info("login succeeded", append(attrs, logging.UserID(user.ID))...)
	return true
}

func (a *Authenticator) fail(role store.Role, result string, attrs []any) {
	metrics.LoginAttemptsTotal.WithLabelValues(roleLabel(role), result).Inc()
	a.log.Warn("login failed", append(attrs, logging.Security("login_failed"), slog.String("result", result))...)
}

func roleLabel(r store.Role) string {
	if !r.Valid() {
		return "unknown"
	}
	return r.String()
}
