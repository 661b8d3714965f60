package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/build"
	"github.com/carnet-scolaire/carnet/internal/config"
	"github.com/carnet-scolaire/carnet/internal/dal"
	"github.com/carnet-scolaire/carnet/internal/db"
	"github.com/carnet-scolaire/carnet/internal/handler"
	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/metrics"
	"github.com/carnet-scolaire/carnet/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Env)
			slog.SetDefault(logger)
			metrics.BuildInfo.WithLabelValues(build.Version, build.Commit).Set(1)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := openDAL(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database.Pool(), cfg.DB.Driver); err != nil {
				return err
			}

			sessionManager, closeSessions, err := openSessionManager(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSessions()

			sessions := auth.NewSessions(sessionManager,
				auth.WithTimeout(cfg.Session.Timeout),
				auth.WithRotateInterval(cfg.Session.RotateInterval),
				auth.WithSessionLogger(logger))
			csrf := auth.NewCSRF(sessions, cfg.CSRF.TTL, logger)
			authenticator := auth.NewAuthenticator(store.NewCredentials(database), sessions, logger)

			router := handler.NewRouter(handler.Deps{
				SessionManager: sessionManager,
				Sessions:       sessions,
				CSRF:           csrf,
				Guard:          auth.NewGuard(sessions, logger),
				AuthHandlers:   auth.NewHandlers(authenticator, sessions, logger),
				DB:             database,
				Logger:         logger,
			})

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", slog.String("addr", cfg.HTTP.Addr), slog.String("env", cfg.Env), slog.String("version", build.String()))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func openDAL(cfg *config.Config, logger *slog.Logger) (*dal.DB, error) {
	return dal.Open(db.Opener(cfg.DB.Driver, cfg.DB.DSN), dal.Config{
		MaxReconnectAttempts: cfg.DB.MaxReconnectAttempts,
		MaxOpenConns:         cfg.DB.MaxOpenConns,
		MaxIdleConns:         cfg.DB.MaxIdleConns,
		ConnMaxLifetime:      cfg.DB.ConnMaxLifetime,
		Development:          cfg.Development(),
	}, dal.WithLogger(logger))
}

// openSessionManager connects the configured session backend: Redis, or a SQL
// pool of its own, since the DAL may swap its pool out on reconnect.
func openSessionManager(ctx context.Context, cfg *config.Config) (*scs.SessionManager, func(), error) {
	if cfg.Session.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect session redis: %w", err)
		}
		return auth.NewSessionManager(cfg, nil, rdb), func() { _ = rdb.Close() }, nil
	}

	sessionDB, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewSessionManager(cfg, sessionDB, nil), func() { _ = sessionDB.Close() }, nil
}
