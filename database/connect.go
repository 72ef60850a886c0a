package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig sizes the pgx connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RetryConfig bounds connection retries with exponential backoff.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// ConnectConfig carries everything needed to open a Postgres pool.
type ConnectConfig struct {
	DSN            string
	ConnectTimeout time.Duration
	Pool           PoolConfig
	Retry          *RetryConfig
}

// Connect opens a pgx pool, verifies it with a ping, and wraps it in a
// PgxDatabase. A Retry config turns transient startup failures into
// backed-off reattempts.
func Connect(ctx context.Context, cfg ConnectConfig) (*PgxDatabase, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if cfg.Retry != nil {
		pool, err := retryConnect(ctx, *cfg.Retry, func(ctx context.Context) (*pgxpool.Pool, error) {
			return openPool(ctx, cfg)
		})
		if err != nil {
			return nil, fmt.Errorf("database: connect after %d retries: %w", cfg.Retry.MaxRetries, err)
		}
		return NewPgxDatabase(pool), nil
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPgxDatabase(pool), nil
}

func openPool(ctx context.Context, cfg ConnectConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: parsing dsn: %w", err)
	}
	if cfg.Pool.MaxConns > 0 {
		pc.MaxConns = cfg.Pool.MaxConns
	}
	if cfg.Pool.MinConns > 0 {
		pc.MinConns = cfg.Pool.MinConns
	}
	if cfg.Pool.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.Pool.MaxConnLifetime
	}
	if cfg.Pool.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.Pool.MaxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func retryConnect(ctx context.Context, opts RetryConfig, connect func(context.Context) (*pgxpool.Pool, error)) (*pgxpool.Pool, error) {
	delay := opts.BaseDelay
	if delay == 0 {
		delay = time.Second
	}
	var err error
	for i := 0; i <= opts.MaxRetries; i++ {
		var pool *pgxpool.Pool
		pool, err = connect(ctx)
		if err == nil {
			return pool, nil
		}
		if i == opts.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay *= 2
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}
	return nil, err
}
