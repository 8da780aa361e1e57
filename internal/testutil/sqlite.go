// Package testutil provides database helpers for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens a file-backed SQLite database in a per-test temp dir.
// The handle is closed when the test completes.
func OpenSQLite(t testing.TB, name string) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Dialect: dialect.SQLite,
		DSN:     filepath.Join(t.TempDir(), name+".db"),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite %s: %v", name, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Exec runs each statement and fails the test on the first error.
func Exec(t testing.TB, db *sql.DB, statements ...string) {
	t.Helper()
	for _, s := range statements {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

// Count returns SELECT COUNT(*) for table.
func Count(t testing.TB, db *sql.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM " + dialect.QuoteDouble(table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
