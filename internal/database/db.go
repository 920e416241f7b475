// Package database provides PostgreSQL persistence for BaselineGate:
// tenants, provider configurations, credit balances, and finished
// analysis records.
package database

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema migrations ship inside the binary so a deploy can never run
// against a schema it does not know how to reach.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Analyses are coarse-grained and long-running, so a small pool is
// plenty. Idle connections are released quickly to stay within managed
// Postgres connection limits.
const (
	poolMaxConns    = 10
	poolIdleTimeout = 5 * time.Minute
)

// DB bundles a pgx pool behind the query methods in this package. The
// pool is not exposed; all access goes through those methods.
type DB struct {
	pool *pgxpool.Pool
}

// New opens the connection pool and verifies the database is reachable.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MaxConnIdleTime = poolIdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Migrate applies all pending schema migrations. Already-applied
// migrations are skipped, so running it on every boot is safe.
func Migrate(databaseURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
