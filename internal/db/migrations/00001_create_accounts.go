package migrations

// One credential table per role. The tables share a shape so the credential
// gateway can read any of them with the same column list; only students carry
// a class.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

var accountTables = []string{"admins", "teachers", "students", "parents", "staff"}

func init() {
	goose.AddMigrationContext(upCreateAccounts, downCreateAccounts)
}

func upCreateAccounts(ctx context.Context, tx *sql.Tx) error {
	for _, table := range accountTables {
		classCol := ""
		if table == "students" {
			classCol = "\n    class_name    VARCHAR(50),"
		}
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    login         VARCHAR(100) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    last_name     VARCHAR(100) NOT NULL DEFAULT '',
    first_name    VARCHAR(100) NOT NULL DEFAULT '',%s
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table, idColumn(), classCol)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s table: %w", table, err)
		}
	}
	return nil
}

func downCreateAccounts(ctx context.Context, tx *sql.Tx) error {
	for _, table := range accountTables {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return err
		}
	}
	return nil
}
