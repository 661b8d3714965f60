package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/dal"
	"github.com/carnet-scolaire/carnet/internal/store"
	"github.com/carnet-scolaire/carnet/internal/testutil"
)

var laptop = auth.Fingerprint{ClientIP: "192.0.2.10", UserAgent: "Firefox/140.0"}

func TestLogin_Success(t *testing.T) {
	sm := newSessionManager()
	ctx := loadSession(t, sm)
	clock := newFakeClock()
	s := auth.NewSessions(sm, auth.WithClock(clock.Now))
	a := auth.NewAuthenticator(jdupont(t), s, nil)
	before := sm.Token(ctx)

	require.True(t, a.Login(ctx, laptop, store.RoleStudent, "jdupont", "correct-pw"))

	u := s.CurrentUser(ctx)
	require.NotNil(t, u)
	assert.Equal(t, store.RoleStudent, u.Role)
	assert.Equal(t, "6B", u.ClassName)
	assert.Equal(t, clock.Now(), s.AuthTime(ctx))
	assert.True(t, s.VerifyFingerprint(ctx, laptop))
	assert.NotEqual(t, before, sm.Token(ctx), "login issues a new session id")
}

func TestLogin_WrongPassword(t *testing.T) {
	sm := newSessionManager()
	ctx := loadSession(t, sm)
	s := auth.NewSessions(sm)
	a := auth.NewAuthenticator(jdupont(t), s, nil)

	assert.False(t, a.Login(ctx, laptop, store.RoleStudent, "jdupont", "wrong-pw"))
	assert.False(t, s.IsAuthenticated(ctx))
	assert.True(t, s.AuthTime(ctx).IsZero())
}

func TestLogin_UnknownAccountAndRoleMismatch(t *testing.T) {
	sm := newSessionManager()
	ctx := loadSession(t, sm)
	s := auth.NewSessions(sm)
	creds := jdupont(t)
	a := auth.NewAuthenticator(creds, s, nil)

	assert.False(t, a.Login(ctx, laptop, store.RoleStudent, "nobody", "correct-pw"))
	assert.False(t, a.Login(ctx, laptop, store.RoleTeacher, "jdupont", "correct-pw"))
	assert.False(t, s.IsAuthenticated(ctx))
	assert.Equal(t, 2, creds.calls)
}

func TestLogin_InvalidRoleIssuesNoQuery(t *testing.T) {
	sm := newSessionManager()
	ctx := loadSession(t, sm)
	creds := jdupont(t)
	a := auth.NewAuthenticator(creds, auth.NewSessions(sm), nil)

	assert.False(t, a.Login(ctx, laptop, store.Role(0), "jdupont", "correct-pw"))
	assert.False(t, a.Login(ctx, laptop, store.Role(99), "jdupont", "correct-pw"))
	assert.Zero(t, creds.calls)
}

func TestLogin_LookupErrorFailsClosed(t *testing.T) {
	sm := newSessionManager()
	ctx := loadSession(t, sm)
	s := auth.NewSessions(sm)
	creds := &mockCredentials{find: func(context.Context, store.Role, string) (*store.Credential, error) {
		return nil, errors.Join(dal.ErrConnectionLost, errors.New("dial tcp: connection refused"))
	}}
	a := auth.NewAuthenticator(creds, s, nil)

	assert.False(t, a.Login(ctx, laptop, store.RoleAdmin, "root", "whatever"))
	assert.False(t, s.IsAuthenticated(ctx))
}

func TestLogin_AgainstDatabase(t *testing.T) {
	db := dal.New(testutil.NewTestDB(t), dal.Config{Development: true})
	creds := store.NewCredentials(db)
	_, err := creds.Create(context.Background(), store.RoleStudent, store.Account{
		LoginID: "jdupont", PasswordHash: mustHash(t, "correct-pw"), LastName: "Dupont", FirstName: "Jean", ClassName: "6B",
	})
	require.NoError(t, err)

	sm := newSessionManager()
	ctx := loadSession(t, sm)
	s := auth.NewSessions(sm)
	a := auth.NewAuthenticator(creds, s, nil)

	assert.False(t, a.Login(ctx, laptop, store.RoleStudent, "jdupont", "wrong-pw"))
	assert.False(t, s.IsAuthenticated(ctx))

	require.True(t, a.Login(ctx, laptop, store.RoleStudent, "jdupont", "correct-pw"))
	assert.Equal(t, "Jean Dupont", s.CurrentUser(ctx).DisplayName())
}
