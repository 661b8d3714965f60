package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/config"
	"github.com/carnet-scolaire/carnet/internal/store"
	"github.com/carnet-scolaire/carnet/internal/testutil"
)

func sessionConfig(storeKind string) *config.Config {
	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite3"
	cfg.Session.Store = storeKind
	cfg.Session.CookieName = "carnet_session"
	cfg.Session.Lifetime = 24 * time.Hour
	cfg.Session.Path = "/"
	cfg.Session.Secure = true
	cfg.Session.HTTPOnly = true
	cfg.Session.SameSite = http.SameSiteStrictMode
	return cfg
}

func TestNewSessionManager_SQLStore(t *testing.T) {
	sm := auth.NewSessionManager(sessionConfig("sql"), testutil.NewTestDB(t), nil)
	st, ok := sm.Store.(*sqlite3store.SQLite3Store)
	require.True(t, ok)
	t.Cleanup(st.StopCleanup)

	assert.Equal(t, "carnet_session", sm.Cookie.Name)
	assert.True(t, sm.Cookie.Secure)
	assert.True(t, sm.Cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, sm.Cookie.SameSite)
	assert.Equal(t, 24*time.Hour, sm.Lifetime)
}

func TestNewSessionManager_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sm := auth.NewSessionManager(sessionConfig("redis"), nil, rdb)
	require.IsType(t, &goredisstore.RedisStore{}, sm.Store)

	ctx, err := sm.Load(context.Background(), "")
	require.NoError(t, err)
	s := auth.NewSessions(sm)
	s.SetUser(ctx, &store.User{ID: 12, Role: store.RoleTeacher, LoginID: "mmartin"})
	s.RefreshAuthTime(ctx)

	token, _, err := sm.Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	ctx, err = sm.Load(context.Background(), token)
	require.NoError(t, err)
	u := s.CurrentUser(ctx)
	require.NotNil(t, u)
	assert.Equal(t, "mmartin", u.LoginID)
	assert.False(t, s.IsExpired(ctx, time.Hour))
}
