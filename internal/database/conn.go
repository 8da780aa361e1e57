// Package database opens connections for the supported dialects and defines
// the narrow capability the migration engine needs from them.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"db-migrate/internal/dialect"
)

// Conn is satisfied by *sql.DB and *sql.Tx.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var _ Conn = (*sql.DB)(nil)
var _ Conn = (*sql.Tx)(nil)

// Config describes one side of a migration.
type Config struct {
	Dialect dialect.Kind
	Driver  string // optional override, e.g. "pgx"
	DSN     string
}

// DriverName resolves the database/sql driver registered for cfg.
func DriverName(cfg Config) string {
	if cfg.Driver != "" {
		return cfg.Driver
	}
	switch cfg.Dialect {
	case dialect.SQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

// Open opens and pings a connection. SQLite handles are limited to a single
// connection: the file has one writer and parallel table copies share it.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for %s", cfg.Dialect)
	}
	db, err := sql.Open(DriverName(cfg), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if cfg.Dialect == dialect.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Dialect, err)
	}
	return db, nil
}
