package auth

import (
	"context"
	"encoding/gob"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/metrics"
	"github.com/carnet-scolaire/carnet/internal/store"
)

// Session record keys.
const (
	SessionUserKey           = "user"
	SessionAuthTimeKey       = "auth_time"
	SessionLastRegenerateKey = "last_regenerate"
	SessionClientIPKey       = "client_ip"
	SessionUserAgentKey      = "user_agent"
	SessionRedirectKey       = "redirect_after_login"
	SessionFlashKey          = "flash"
	sessionCSRFPrefix        = "csrf:"
)

const (
	DefaultSessionTimeout = 2 * time.Hour
	DefaultRotateInterval = 30 * time.Minute
)

func init() {
	gob.Register(store.User{})
	gob.Register(CSRFToken{})
	gob.Register(time.Time{})
}

// SessionStore is the host session store. *scs.SessionManager satisfies it;
// access is serialized per session by the store's LoadAndSave middleware.
type SessionStore interface {
	Exists(ctx context.Context, key string) bool
	Get(ctx context.Context, key string) interface{}
	Put(ctx context.Context, key string, val interface{})
	Remove(ctx context.Context, key string)
	PopString(ctx context.Context, key string) string
	RenewToken(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Fingerprint identifies the client a session was established from.
type Fingerprint struct {
	ClientIP  string
	UserAgent string
}

// FingerprintFromRequest reads the client IP from RemoteAddr, which chi's
// RealIP middleware has already rewritten when running behind a proxy.
func FingerprintFromRequest(r *http.Request) Fingerprint {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Fingerprint{ClientIP: ip, UserAgent: r.UserAgent()}
}

// SessionOption customizes Sessions.
type SessionOption func(*Sessions)

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Sessions) { s.now = now }
}

// WithTimeout sets the inactivity timeout used by IsExpired when called with 0.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRotateInterval sets how often RotateIDPeriodically issues a new id.
func WithRotateInterval(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.rotateInterval = d
		}
	}
}

// WithSessionLogger sets the logger security events are reported to.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Sessions) { s.log = logging.Or(l) }
}

// Sessions represents and protects the authenticated state of a session.
type Sessions struct {
	store          SessionStore
	now            func() time.Time
	timeout        time.Duration
	rotateInterval time.Duration
	log            *slog.Logger
}

func NewSessions(st SessionStore, opts ...SessionOption) *Sessions {
	s := &Sessions{
		store:          st,
		now:            time.Now,
		timeout:        DefaultSessionTimeout,
		rotateInterval: DefaultRotateInterval,
		log:            logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the configured inactivity timeout.
func (s *Sessions) Timeout() time.Duration { return s.timeout }

// CurrentUser returns the authenticated user, or nil for an anonymous session.
func (s *Sessions) CurrentUser(ctx context.Context) *store.User {
	u, ok := s.store.Get(ctx, SessionUserKey).(store.User)
	if !ok || u.ID == 0 {
		return nil
	}
	return &u
}

// IsAuthenticated reports whether the session carries a user with an id.
func (s *Sessions) IsAuthenticated(ctx context.Context) bool {
	return s.CurrentUser(ctx) != nil
}

// SetUser stores u in the session.
func (s *Sessions) SetUser(ctx context.Context, u *store.User) {
	s.store.Put(ctx, SessionUserKey, *u)
}

// AuthTime returns the last authentication or refresh time, or the zero time.
func (s *Sessions) AuthTime(ctx context.Context) time.Time {
	t, _ := s.store.Get(ctx, SessionAuthTimeKey).(time.Time)
	return t
}

// RefreshAuthTime stamps authTime with the current time. It never moves
// authTime backwards.
func (s *Sessions) RefreshAuthTime(ctx context.Context) {
	now := s.now()
	if prev := s.AuthTime(ctx); !prev.IsZero() && now.Before(prev) {
		return
	}
	s.store.Put(ctx, SessionAuthTimeKey, now)
}

// IsExpired reports whether authTime is missing or older than timeout.
// A zero timeout means the configured one.
func (s *Sessions) IsExpired(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = s.timeout
	}
	at := s.AuthTime(ctx)
	if at.IsZero() {
		return true
	}
	return s.now().Sub(at) > timeout
}

// RotateIDPeriodically issues a new session id, keeping the record, when
// lastRegenerate is missing or older than interval. A zero interval means the
// configured one. It reports whether the id was rotated.
func (s *Sessions) RotateIDPeriodically(ctx context.Context, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = s.rotateInterval
	}
	now := s.now()
	last, ok := s.store.Get(ctx, SessionLastRegenerateKey).(time.Time)
	if ok && now.Sub(last) <= interval {
		return false, nil
	}
	if err := s.rotate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sessions) rotate(ctx context.Context) error {
	if err := s.store.RenewToken(ctx); err != nil {
		return err
	}
	s.store.Put(ctx, SessionLastRegenerateKey, s.now())
	metrics.SessionRotationsTotal.Inc()
	return nil
}

// BindFingerprint records the client the session was established from.
func (s *Sessions) BindFingerprint(ctx context.Context, fp Fingerprint) {
	s.store.Put(ctx, SessionClientIPKey, fp.ClientIP)
	s.store.Put(ctx, SessionUserAgentKey, fp.UserAgent)
}

// VerifyFingerprint reports whether fp matches the bound fingerprint. A
// session with no bound fingerprint never matches.
func (s *Sessions) VerifyFingerprint(ctx context.Context, fp Fingerprint) bool {
	ip, ok := s.store.Get(ctx, SessionClientIPKey).(string)
	if !ok {
		return false
	}
	ua, ok := s.store.Get(ctx, SessionUserAgentKey).(string)
	if !ok {
		return false
	}
	return ip == fp.ClientIP && ua == fp.UserAgent
}

// Destroy clears all session state and expires the session cookie.
func (s *Sessions) Destroy(ctx context.Context) error {
	return s.store.Destroy(ctx)
}

// SetRedirectAfterLogin remembers where to send the user once they log in.
func (s *Sessions) SetRedirectAfterLogin(ctx context.Context, target string) {
	s.store.Put(ctx, SessionRedirectKey, target)
}

// PopRedirectAfterLogin returns and clears the remembered redirect target.
func (s *Sessions) PopRedirectAfterLogin(ctx context.Context) string {
	return s.store.PopString(ctx, SessionRedirectKey)
}

// Flash stores a one-shot notice for the next rendered page.
func (s *Sessions) Flash(ctx context.Context, msg string) {
	s.store.Put(ctx, SessionFlashKey, msg)
}

// PopFlash returns and clears the pending notice.
func (s *Sessions) PopFlash(ctx context.Context) string {
	return s.store.PopString(ctx, SessionFlashKey)
}
