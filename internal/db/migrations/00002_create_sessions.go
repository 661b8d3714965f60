package migrations

// The sessions table layout is dictated by the scs store adapter for each
// driver: BLOB/REAL for SQLite, BYTEA/TIMESTAMPTZ for PostgreSQL and
// BLOB/TIMESTAMP(6) for MySQL. Unused when sessions live in Redis.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

var sessionsDDL = map[string]string{
	"postgres": `CREATE TABLE IF NOT EXISTS sessions (
    token  TEXT PRIMARY KEY,
    data   BYTEA NOT NULL,
    expiry TIMESTAMPTZ NOT NULL
)`,
	"mysql": `CREATE TABLE IF NOT EXISTS sessions (
    token  CHAR(43) PRIMARY KEY,
    data   BLOB NOT NULL,
    expiry TIMESTAMP(6) NOT NULL
)`,
	"sqlite3": `CREATE TABLE IF NOT EXISTS sessions (
    token  TEXT PRIMARY KEY,
    data   BLOB NOT NULL,
    expiry REAL NOT NULL
)`,
}

func init() {
	goose.AddMigrationContext(upCreateSessions, downCreateSessions)
}

func upCreateSessions(ctx context.Context, tx *sql.Tx) error {
	ddl, ok := sessionsDDL[dialect]
	if !ok {
		ddl = sessionsDDL["sqlite3"]
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	idx := `CREATE INDEX sessions_expiry_idx ON sessions (expiry)`
	if dialect != "mysql" {
		idx = `CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry)`
	}
	_, err := tx.ExecContext(ctx, idx)
	return err
}

func downCreateSessions(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS sessions`)
	return err
}
