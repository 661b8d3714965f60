package auth

import (
	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/carnet-scolaire/carnet/internal/config"
)

// NewSessionManager creates an SCS session manager. With session.store=redis
// records live in rdb; otherwise they live in the sessions table of db, with
// the store picked by driver: "mysql", "postgres", or "sqlite3" (default).
//
// Lifetime only bounds how long the cookie and the stored record survive;
// inactivity expiry is enforced by Sessions.IsExpired.
func NewSessionManager(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) *scs.SessionManager {
	sm := scs.New()
	switch {
	case cfg.Session.Store == "redis" && rdb != nil:
		sm.Store = goredisstore.New(rdb)
	case cfg.DB.Driver == "mysql":
		sm.Store = mysqlstore.New(db.DB)
	case cfg.DB.Driver == "postgres":
		sm.Store = postgresstore.New(db.DB)
	default: // sqlite3
		sm.Store = sqlite3store.New(db.DB)
	}
	sm.Lifetime = cfg.Session.Lifetime
	sm.Cookie.Name = cfg.Session.CookieName
	sm.Cookie.Path = cfg.Session.Path
	sm.Cookie.Secure = cfg.Session.Secure
	sm.Cookie.HttpOnly = cfg.Session.HTTPOnly
	sm.Cookie.SameSite = cfg.Session.SameSite
	return sm
}
