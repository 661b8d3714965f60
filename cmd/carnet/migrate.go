package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/carnet-scolaire/carnet/internal/config"
	"github.com/carnet-scolaire/carnet/internal/db"
	"github.com/carnet-scolaire/carnet/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Env)

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			logger.Info("migrations complete")
			return nil
		},
	}
}
