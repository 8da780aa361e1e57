package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestDriverName(t *testing.T) {
	assert.Equal(t, "sqlite", database.DriverName(database.Config{Dialect: dialect.SQLite}))
	assert.Equal(t, "postgres", database.DriverName(database.Config{Dialect: dialect.Postgres}))
	assert.Equal(t, "pgx", database.DriverName(database.Config{Dialect: dialect.Postgres, Driver: "pgx"}))
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Dialect: dialect.SQLite,
		DSN:     filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := database.Open(context.Background(), database.Config{Dialect: dialect.SQLite})
	assert.Error(t, err)
}
