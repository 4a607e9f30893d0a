// Package database owns the PostgreSQL side of the content pipeline: the pgx
// pool the hierarchy, topic and content stores share, the schema those stores
// write to (with uniqueness scoped to active rows), and the transaction and
// advisory-lock helpers that make period writes atomic.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName is reported to PostgreSQL unless the URL sets one.
const ApplicationName = "pai-content"

// schemaLockKey serializes Migrate across replicas starting together.
const schemaLockKey = "pai-content:schema"

// DB wraps the pgx pool shared by the stores.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL and tags its connections
// with ApplicationName.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return cfg, nil
}

// New opens the pool and pings it. minConns is capped at maxConns.
func New(ctx context.Context, url string, maxConns, minConns int) (*DB, error) {
	cfg, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = int32(min(minConns, int(cfg.MaxConns)))
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate applies Schema in one transaction under an advisory lock.
func (db *DB) Migrate(ctx context.Context) error {
	start := time.Now()
	err := InTx(ctx, db.Pool, func(tx pgx.Tx) error {
		if err := LockKey(ctx, tx, schemaLockKey); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, Schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	slog.Info("database schema applied", "duration", time.Since(start))
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
