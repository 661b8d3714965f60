package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/metrics"
)

const (
	// DefaultCSRFName is the token name used when none is given.
	DefaultCSRFName = "csrf_token"

	// CSRFFormField and CSRFHeader carry the presented token.
	CSRFFormField = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"

	DefaultCSRFTTL = time.Hour

	csrfTokenBytes = 32
)

// CSRFToken is an anti-forgery token as stored in the session.
type CSRFToken struct {
	Name     string
	Value    string
	IssuedAt time.Time
	TTL      time.Duration
}

func (t CSRFToken) expired(now time.Time) bool {
	return now.Sub(t.IssuedAt) >= t.TTL
}

// CSRF issues and verifies single-use, per-form anti-forgery tokens kept in
// the session.
type CSRF struct {
	sessions *Sessions
	ttl      time.Duration
	log      *slog.Logger
}

// NewCSRF returns a guard storing its tokens through s. A zero ttl means DefaultCSRFTTL.
func NewCSRF(s *Sessions, ttl time.Duration, log *slog.Logger) *CSRF {
	if ttl <= 0 {
		ttl = DefaultCSRFTTL
	}
	return &CSRF{sessions: s, ttl: ttl, log: logging.Or(log)}
}

func csrfKey(name string) string {
	if name == "" {
		name = DefaultCSRFName
	}
	return sessionCSRFPrefix + name
}

// Issue generates a fresh 256-bit token under name, replacing any previous one.
func (c *CSRF) Issue(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if name == "" {
		name = DefaultCSRFName
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	tok := CSRFToken{Name: name, Value: hex.EncodeToString(b), IssuedAt: c.sessions.now(), TTL: ttl}
	c.sessions.store.Put(ctx, csrfKey(name), tok)
	return tok.Value, nil
}

// Token returns the current token for name, issuing one if none is valid.
// Templates call it so reloading a form does not invalidate an open tab.
func (c *CSRF) Token(ctx context.Context, name string) (string, error) {
	if tok, ok := c.sessions.store.Get(ctx, csrfKey(name)).(CSRFToken); ok && !tok.expired(c.sessions.now()) {
		return tok.Value, nil
	}
	return c.Issue(ctx, name, 0)
}

// Verify checks presented against the token stored under name. On success the
// token is replaced before Verify returns, so each value verifies once.
func (c *CSRF) Verify(ctx context.Context, name, presented string) bool {
	return c.Check(ctx, name, presented) == nil
}

// Check is Verify reporting why a token was refused. Every refusal matches
// ErrCSRFRejected.
func (c *CSRF) Check(ctx context.Context, name, presented string) error {
	tok, ok := c.sessions.store.Get(ctx, csrfKey(name)).(CSRFToken)
	switch {
	case !ok:
		return c.reject(ctx, name, "missing")
	case tok.expired(c.sessions.now()):
		c.sessions.store.Remove(ctx, csrfKey(name))
		return c.reject(ctx, name, "expired")
	case subtle.ConstantTimeCompare([]byte(tok.Value), []byte(presented)) != 1:
		return c.reject(ctx, name, "mismatch")
	}

	if _, err := c.Issue(ctx, tok.Name, tok.TTL); err != nil {
		c.sessions.store.Remove(ctx, csrfKey(name))
		c.log.Error("csrf token rotation failed", logging.Error(err))
		return fmt.Errorf("%w: rotation failed: %w", ErrCSRFRejected, err)
	}
	return nil
}

func (c *CSRF) reject(ctx context.Context, name, reason string) error {
	err := fmt.Errorf("%w: %s", ErrCSRFRejected, reason)
	metrics.CSRFRejectionsTotal.WithLabelValues(reason).Inc()
	attrs := []any{logging.Security("csrf_rejected"), logging.Error(err), slog.String("token_name", name), slog.String("reason", reason)}
	if u := c.sessions.CurrentUser(ctx); u != nil {
		attrs = append(attrs, logging.UserID(u.ID))
	}
	c.log.Warn("csrf token rejected", attrs...)
	return err
}

// Protect rejects unsafe requests whose token for name does not verify, before
// the wrapped handler runs. The token is read from the X-CSRF-Token header or
// the csrf_token form field.
func (c *CSRF) Protect(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}
			presented := r.Header.Get(CSRFHeader)
			if presented == "" {
				presented = r.PostFormValue(CSRFFormField)
			}
			if err := c.Check(r.Context(), name, presented); err != nil {
				http.Error(w, ErrCSRFRejected.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
