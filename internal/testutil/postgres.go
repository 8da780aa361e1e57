package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresDSNEnv names the variable holding a PostgreSQL DSN for
// integration tests. Tests needing PostgreSQL are skipped when it is unset.
const PostgresDSNEnv = "DB_MIGRATE_TEST_PG_DSN"

// OpenPostgres connects to the database in PostgresDSNEnv and confines the
// handle to a fresh schema that is dropped when the test completes.
func OpenPostgres(t testing.TB) *sql.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Dialect: dialect.Postgres, DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	// search_path is per connection
	db.SetMaxOpenConns(1)

	name := "dbm_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	Exec(t, db,
		fmt.Sprintf("CREATE SCHEMA %s", name),
		fmt.Sprintf("SET search_path TO %s", name))
	t.Cleanup(func() {
		db.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", name))
		db.Close()
	})
	return db
}
