package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	v.Set("db.driver", "sqlite3")
	v.Set("db.dsn", "file:carnet.db")

	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.False(t, cfg.Development())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 3, cfg.DB.MaxReconnectAttempts)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, 2*time.Hour, cfg.Session.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.RotateInterval)
	assert.Equal(t, 24*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, time.Hour, cfg.CSRF.TTL)
	assert.Equal(t, "carnet_session", cfg.Session.CookieName)
	assert.Equal(t, http.SameSiteLaxMode, cfg.Session.SameSite)
	assert.True(t, cfg.Session.Secure)
	assert.True(t, cfg.Session.HTTPOnly)
	assert.Equal(t, "sql", cfg.Session.Store)
}

func TestLoad_MySQLDSNFromParts(t *testing.T) {
	v := viper.New()
	v.Set("db.driver", "mysql")
	v.Set("db.host", "db.internal")
	v.Set("db.name", "vie_scolaire")
	v.Set("db.user", "carnet")
	v.Set("db.password", "s3cret")

	cfg, err := load(v)
	require.NoError(t, err)

	mc, err := mysql.ParseDSN(cfg.DB.DSN)
	require.NoError(t, err)
	assert.Equal(t, "carnet", mc.User)
	assert.Equal(t, "s3cret", mc.Passwd)
	assert.Equal(t, "db.internal:3306", mc.Addr)
	assert.Equal(t, "vie_scolaire", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Contains(t, cfg.DB.DSN, "charset=utf8mb4")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"missing driver", map[string]any{"db.dsn": "x"}},
		{"missing dsn", map[string]any{"db.driver": "postgres"}},
		{"bad env", map[string]any{"db.driver": "sqlite3", "db.dsn": "x", "env": "staging"}},
		{"bad timeout", map[string]any{"db.driver": "sqlite3", "db.dsn": "x", "session.timeout": "soon"}},
		{"zero reconnects", map[string]any{"db.driver": "sqlite3", "db.dsn": "x", "db.max_reconnect_attempts": 0}},
		{"redis without addr", map[string]any{"db.driver": "sqlite3", "db.dsn": "x", "session.store": "redis"}},
		{"bad same site", map[string]any{"db.driver": "sqlite3", "db.dsn": "x", "session.same_site": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_Development(t *testing.T) {
	v := viper.New()
	v.Set("db.driver", "sqlite3")
	v.Set("db.dsn", "x")
	v.Set("env", "Development")

	cfg, err := load(v)
	require.NoError(t, err)
	assert.True(t, cfg.Development())
}
