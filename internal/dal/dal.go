// Package dal is the data-access layer: the only sanctioned path to the
// relational store. A process-wide DB wraps a bounded sqlx pool and guards it
// with a liveness probe and a bounded reconnect budget; request code works
// through a Handle, which owns that request's transaction state.
package dal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carnet-scolaire/carnet/internal/logging"
	"github.com/carnet-scolaire/carnet/internal/metrics"
)

// Config controls pool sizing, the reconnect budget and error verbosity.
type Config struct {
	MaxReconnectAttempts int
	MaxOpenConns         int
	MaxIdleConns         int
	ConnMaxLifetime      time.Duration
	ProbeTimeout         time.Duration
	Development          bool
}

// Option customizes a DB.
type Option func(*DB)

// WithOpener sets the function used to re-establish the pool after a failed probe.
func WithOpener(open func() (*sqlx.DB, error)) Option {
	return func(d *DB) { d.open = open }
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(d *DB) { d.log = logging.Or(l) }
}

// DB is the process-wide, pooled connection handle.
type DB struct {
	cfg  Config
	log  *slog.Logger
	open func() (*sqlx.DB, error)

	// probe is swapped by tests to observe liveness checks.
	probe func(ctx context.Context, pool *sqlx.DB) error

	mu                sync.Mutex
	pool              *sqlx.DB
	reconnectAttempts int
}

// New wraps an already opened pool.
func New(pool *sqlx.DB, cfg Config, opts ...Option) *DB {
	if cfg.MaxReconnectAttempts < 1 {
		cfg.MaxReconnectAttempts = 3
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	d := &DB{
		cfg:   cfg,
		log:   logging.Discard(),
		pool:  pool,
		probe: func(ctx context.Context, p *sqlx.DB) error { return p.PingContext(ctx) },
	}
	for _, opt := range opts {
		opt(d)
	}
	d.configure(pool)
	return d
}

// Open opens a pool with the given opener and wraps it.
func Open(open func() (*sqlx.DB, error), cfg Config, opts ...Option) (*DB, error) {
	pool, err := open()
	if err != nil {
		return nil, err
	}
	return New(pool, cfg, append([]Option{WithOpener(open)}, opts...)...), nil
}

func (d *DB) configure(pool *sqlx.DB) {
	if d.cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(d.cfg.MaxOpenConns)
	}
	if d.cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(d.cfg.MaxIdleConns)
	}
	if d.cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(d.cfg.ConnMaxLifetime)
	}
}

// Handle returns a new request-scoped handle.
func (d *DB) Handle() *Handle {
	return &Handle{db: d}
}

// Pool exposes the current pool for callers that need a raw *sqlx.DB, such
// as migrations run at startup. The pool may be replaced after a reconnect.
func (d *DB) Pool() *sqlx.DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool
}

// DriverName returns the sqlx driver name of the current pool.
func (d *DB) DriverName() string {
	return d.Pool().DriverName()
}

// ReconnectAttempts returns the number of consecutive failed probes.
func (d *DB) ReconnectAttempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reconnectAttempts
}

// Close closes the current pool.
func (d *DB) Close() error {
	return d.Pool().Close()
}

// Ping runs the connection check once and reports the result. Used by the
// health endpoint.
func (d *DB) Ping(ctx context.Context) error {
	_, err := d.checkConnection(ctx)
	return err
}

// checkConnection probes the pool and, on failure, re-opens it until a probe
// succeeds or MaxReconnectAttempts consecutive probes have failed. A probe
// that fails because ctx is done is not counted. Healthy
// probes run without holding the lock so concurrent requests do not queue
// behind each other.
func (d *DB) checkConnection(ctx context.Context) (*sqlx.DB, error) {
	pool := d.Pool()
	err := d.ping(ctx, pool)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil && d.pool != pool {
		// Another request reconnected while we were probing.
		pool = d.pool
		err = d.ping(ctx, pool)
	}

	for {
		if err == nil {
			if d.reconnectAttempts > 0 {
				d.log.Info("database connection restored", slog.Int("attempts", d.reconnectAttempts))
				d.reconnectAttempts = 0
			}
			return d.pool, nil
		}
		// The caller gave up; the database may be fine.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		d.reconnectAttempts++
		metrics.DBProbeFailuresTotal.Inc()
		if d.reconnectAttempts >= d.cfg.MaxReconnectAttempts {
			return nil, d.classify("connect", KindConnectionLost, "", nil,
				fmt.Errorf("%d consecutive failed probes: %w", d.reconnectAttempts, err))
		}

		d.log.Warn("database probe failed, reconnecting",
			slog.Int("attempt", d.reconnectAttempts),
			slog.Int("max_attempts", d.cfg.MaxReconnectAttempts),
			logging.Error(err))
		d.reconnect()
		err = d.ping(ctx, d.pool)
	}
}

func (d *DB) ping(ctx context.Context, pool *sqlx.DB) error {
	pctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()
	return d.probe(pctx, pool)
}

// reconnect swaps in a freshly opened pool. Must hold d.mu.
func (d *DB) reconnect() {
	if d.open == nil {
		return
	}
	pool, err := d.open()
	if err != nil {
		d.log.Warn("database reopen failed", logging.Error(err))
		return
	}
	metrics.DBReconnectsTotal.Inc()
	d.configure(pool)
	old := d.pool
	d.pool = pool
	if old != nil {
		_ = old.Close()
	}
}

// classify builds and logs an *Error. Must be safe to call with d.mu held.
func (d *DB) classify(op string, kind Kind, query string, params []Param, err error) *Error {
	e := &Error{
		Kind:        kind,
		Op:          op,
		Query:       query,
		Params:      Redact(params),
		Ref:         uuid.NewString(),
		Err:         err,
		development: d.cfg.Development,
	}
	metrics.DBErrorsTotal.WithLabelValues(kind.String()).Inc()
	d.log.Error("database operation failed", slog.Any("dal", e))
	return e
}
