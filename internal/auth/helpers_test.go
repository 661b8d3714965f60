package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carnet-scolaire/carnet/internal/store"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSessionManager() *scs.SessionManager {
	sm := scs.New()
	sm.Store = memstore.New()
	return sm
}

// loadSession returns a context carrying a fresh, empty session.
func loadSession(t *testing.T, sm *scs.SessionManager) context.Context {
	t.Helper()
	ctx, err := sm.Load(context.Background(), "")
	require.NoError(t, err)
	return ctx
}

// mockCredentials is a test double implementing auth.CredentialFinder.
type mockCredentials struct {
	find  func(ctx context.Context, role store.Role, loginID string) (*store.Credential, error)
	calls int
}

func (m *mockCredentials) FindByLogin(ctx context.Context, role store.Role, loginID string) (*store.Credential, error) {
	m.calls++
	return m.find(ctx, role, loginID)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

// jdupont returns a finder holding one student, jdupont / correct-pw.
func jdupont(t *testing.T) *mockCredentials {
	hash := mustHash(t, "correct-pw")
	return &mockCredentials{find: func(_ context.Context, role store.Role, loginID string) (*store.Credential, error) {
		if role != store.RoleStudent || loginID != "jdupont" {
			return nil, store.ErrNotFound
		}
		return &store.Credential{
			User: store.User{
				ID: 7, Role: store.RoleStudent, LoginID: "jdupont",
				LastName: "Dupont", FirstName: "Jean", ClassName: "6B",
			},
			PasswordHash: hash,
		}, nil
	}}
}

// browser replays cookies across requests against h, like a real client.
type browser struct {
	t         *testing.T
	h         http.Handler
	cookies   map[string]*http.Cookie
	ip        string
	userAgent string
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: map[string]*http.Cookie{}, ip: "192.0.2.10", userAgent: "Firefox/140.0"}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.RemoteAddr = b.ip + ":51234"
	req.Header.Set("User-Agent", b.userAgent)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) cookie(name string) string {
	if c, ok := b.cookies[name]; ok {
		return c.Value
	}
	return ""
}
