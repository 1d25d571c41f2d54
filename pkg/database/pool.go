package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/retry"
)

// PoolInterface is the subset of *pgxpool.Pool the Pool uses. pgxmock pools satisfy it.
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
	Stat() *pgxpool.Stat
}

var _ PoolInterface = (*pgxpool.Pool)(nil)

// Pool is a PostgreSQL connection pool.
type Pool struct {
	pool PoolInterface
}

var _ TxRunner = (*Pool)(nil)

// startupRetry bounds how long NewPool waits for a database that is still starting.
var startupRetry = retry.Config{
	MaxAttempts:  5,
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Policy:       retry.PolicyTemporary,
}

// NewPool connects to PostgreSQL. Unreachable servers are retried with backoff; a
// malformed configuration fails immediately.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString(cfg))
	if err != nil {
		return nil, errors.NewPermanent("failed to parse database config", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	retryCfg := startupRetry
	retryCfg.OnRetry = func(err error, attempt uint, next time.Duration) {
		logger.Warn().
			Err(err).
			Uint(logging.Attempt, attempt).
			Dur("retry_in", next).
			Msg("database not reachable yet")
	}

	pool, err := retry.DoWithData(ctx, retryCfg, func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, errors.NewPermanent("failed to create connection pool", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, errors.NewTemporary("failed to ping database", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str(logging.Component, "database").
		Int32("max_conns", poolConfig.MaxConns).
		Msg("database pool ready")

	return &Pool{pool: pool}, nil
}

// Wrap adapts an existing pool, such as a pgxmock pool in tests.
func Wrap(p PoolInterface) *Pool {
	return &Pool{pool: p}
}

// connString prefers cfg.URL and otherwise builds a keyword/value DSN.
func connString(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s",
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.User,
		cfg.Password,
	)
	if cfg.SSLMode != "" {
		connStr += fmt.Sprintf(" sslmode=%s", cfg.SSLMode)
	}
	if cfg.ConnectTimeout > 0 {
		connStr += fmt.Sprintf(" connect_timeout=%d", int(cfg.ConnectTimeout.Seconds()))
	}
	return connStr
}

func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// Ping verifies a connection is still alive.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes all connections. The pool must not be used afterwards.
func (p *Pool) Close() {
	p.pool.Close()
}

// Stats returns pool statistics. It is nil for pools that do not track them.
func (p *Pool) Stats() *pgxpool.Stat {
	return p.pool.Stat()
}
