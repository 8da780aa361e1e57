package orchestrator_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"db-migrate/internal/database"
	"db-migrate/internal/diff"
	"db-migrate/internal/dialect"
	"db-migrate/internal/engine"
	"db-migrate/internal/orchestrator"
	"db-migrate/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	active BOOLEAN DEFAULT 1
);
CREATE INDEX idx_users_active ON users (active);
CREATE TABLE posts (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	title TEXT CHECK (length(title) > 0)
);
CREATE TABLE audit (id INTEGER PRIMARY KEY, note TEXT);
`

func seedSource(t *testing.T, db *sql.DB) {
	for _, stmt := range strings.Split(sourceSchema, ";") {
		if strings.TrimSpace(stmt) != "" {
			testutil.Exec(t, db, stmt)
		}
	}
	testutil.Exec(t, db,
		`INSERT INTO users (email, active) WITH RECURSIVE s(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM s WHERE x < 40) SELECT 'u' || x || '@example.com', x % 2 FROM s`,
		`INSERT INTO posts (id, user_id, title) WITH RECURSIVE s(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM s WHERE x < 95) SELECT x, x % 40 + 1, 'post ' || x FROM s`,
		`INSERT INTO audit (id, note) VALUES (1, 'a'), (2, 'b')`,
	)
}

func newOrchestrator(t *testing.T, src, dst *sql.DB, opts orchestrator.Options, lock *orchestrator.Lock) *orchestrator.Orchestrator {
	o, err := orchestrator.New(orchestrator.Config{
		Source:  orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: src},
		Target:  orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: dst},
		Options: opts,
	}, lock, nil)
	require.NoError(t, err)
	return o
}

func setup(t *testing.T) (src, dst *sql.DB) {
	src = testutil.OpenSQLite(t, "source")
	dst = testutil.OpenSQLite(t, "target")
	seedSource(t, src)
	return src, dst
}

func TestMigrateEndToEnd(t *testing.T) {
	src, dst := setup(t)

	var progressCalls int
	res := newOrchestrator(t, src, dst, orchestrator.Options{
		BatchSize:  10,
		OnProgress: func(engine.Progress) { progressCalls++ },
	}, nil).Migrate(context.Background())

	require.True(t, res.Success, "%v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 3, res.TablesProcessed)
	assert.Equal(t, int64(40+95+2), res.RowsMigrated)
	assert.Equal(t, orchestrator.Summary{SchemaChanges: 3, DataChanges: 3, IndexesCreated: 1, ConstraintsApplied: 3}, res.Summary)
	assert.Positive(t, progressCalls)

	assert.Equal(t, int64(40), testutil.Count(t, dst, "users"))
	assert.Equal(t, int64(95), testutil.Count(t, dst, "posts"))
	assert.Equal(t, int64(2), testutil.Count(t, dst, "audit"))

	// users is created before posts, which references it
	require.Len(t, res.Tables, 3)
	assert.Equal(t, "audit", res.Tables[0].TableName)
	assert.Equal(t, "users", res.Tables[1].TableName)
	assert.Equal(t, "posts", res.Tables[2].TableName)

	cmp, err := newOrchestrator(t, src, dst, orchestrator.Options{}, nil).CompareSchemas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cmp.Differences)
}

func TestMigrateSchemaOnly(t *testing.T) {
	src, dst := setup(t)

	res := newOrchestrator(t, src, dst, orchestrator.Options{SchemaOnly: true}, nil).Migrate(context.Background())
	require.True(t, res.Success)
	assert.Zero(t, res.RowsMigrated)
	assert.Equal(t, 3, res.Summary.SchemaChanges)
	assert.Zero(t, testutil.Count(t, dst, "users"))
}

func TestMigrateDataOnly(t *testing.T) {
	src, dst := setup(t)
	testutil.Exec(t, dst, `CREATE TABLE audit (id INTEGER PRIMARY KEY, note TEXT)`)

	res := newOrchestrator(t, src, dst, orchestrator.Options{DataOnly: true}, nil).Migrate(context.Background())
	require.True(t, res.Success)
	assert.Zero(t, res.Summary.SchemaChanges)
	assert.Equal(t, int64(2), res.RowsMigrated)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "audit", res.Tables[0].TableName)
}

func TestMigrateIncludeExclude(t *testing.T) {
	src, dst := setup(t)

	res := newOrchestrator(t, src, dst, orchestrator.Options{
		IncludeTables: []string{"users", "AUDIT"},
		ExcludeTables: []string{"audit"},
	}, nil).Migrate(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 1, res.TablesProcessed)
	assert.Equal(t, int64(40), res.RowsMigrated)

	var n int
	require.NoError(t, dst.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('posts', 'audit')`).Scan(&n))
	assert.Zero(t, n)
}

func TestMigrateDropTables(t *testing.T) {
	src, dst := setup(t)
	testutil.Exec(t, dst,
		`CREATE TABLE audit (id INTEGER PRIMARY KEY, note TEXT, extra TEXT)`,
		`INSERT INTO audit (id, note) VALUES (1, 'stale'), (3, 'stale')`,
		`CREATE TABLE unrelated (id INTEGER)`,
	)

	res := newOrchestrator(t, src, dst, orchestrator.Options{DropTables: true}, nil).Migrate(context.Background())
	require.True(t, res.Success, "%v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 4, res.Summary.SchemaChanges) // one drop, three creates
	assert.Equal(t, int64(2), testutil.Count(t, dst, "audit"))
	assert.Equal(t, int64(0), testutil.Count(t, dst, "unrelated"))

	var note string
	require.NoError(t, dst.QueryRow(`SELECT note FROM audit WHERE id = 1`).Scan(&note))
	assert.Equal(t, "a", note)
}

func TestMigrateReportsWarnings(t *testing.T) {
	src, dst := setup(t)
	// existing table missing a column and holding a row of its own
	testutil.Exec(t, dst,
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE)`,
		`INSERT INTO users (id, email) VALUES (1000, 'legacy@example.com')`,
	)

	res := newOrchestrator(t, src, dst, orchestrator.Options{}, nil).Migrate(context.Background())
	require.True(t, res.Success, "%v", res.Errors)

	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "column_added")
	assert.Contains(t, joined, "row count mismatch for users: source=40 target=41")
	assert.Equal(t, int64(41), testutil.Count(t, dst, "users"))
}

func TestMigrateLockHeld(t *testing.T) {
	src, dst := setup(t)
	lock := orchestrator.NewLock()
	owner, err := lock.TryAcquire()
	require.NoError(t, err)

	res := newOrchestrator(t, src, dst, orchestrator.Options{}, lock).Migrate(context.Background())
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.True(t, res.Errors[0].Fatal)
	assert.ErrorIs(t, res.Errors[0], orchestrator.ErrLocked)

	lock.Release(owner)
	res = newOrchestrator(t, src, dst, orchestrator.Options{}, lock).Migrate(context.Background())
	assert.True(t, res.Success)
	// released again once the run is over
	again, err := lock.TryAcquire()
	require.NoError(t, err)
	lock.Release(again)
}

func TestMigrateIntrospectionFailureIsFatal(t *testing.T) {
	src, dst := setup(t)
	require.NoError(t, dst.Close())

	res := newOrchestrator(t, src, dst, orchestrator.Options{}, nil).Migrate(context.Background())
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.True(t, res.Errors[0].Fatal)
}

// brokenConn panics on use.
type brokenConn struct{ database.Conn }

func TestMigrateRecoversFromPanic(t *testing.T) {
	dst := testutil.OpenSQLite(t, "target")

	o, err := orchestrator.New(orchestrator.Config{
		Source: orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: brokenConn{}},
		Target: orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: dst},
	}, nil, nil)
	require.NoError(t, err)

	res := o.Migrate(context.Background())
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.True(t, res.Errors[0].Fatal)
	assert.Contains(t, res.Errors[0].Error(), "panic")

	_, err = o.SyncSchema(context.Background(), orchestrator.SyncOptions{})
	assert.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	db := testutil.OpenSQLite(t, "db")

	_, err := orchestrator.New(orchestrator.Config{
		Source: orchestrator.Endpoint{Dialect: "oracle", Conn: db},
		Target: orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: db},
	}, nil, nil)
	assert.ErrorIs(t, err, dialect.ErrUnknownDialect)

	_, err = orchestrator.New(orchestrator.Config{
		Source:  orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: db},
		Target:  orchestrator.Endpoint{Dialect: dialect.SQLite, Conn: db},
		Options: orchestrator.Options{DataOnly: true, SchemaOnly: true},
	}, nil, nil)
	assert.Error(t, err)
}

func TestSyncSchema(t *testing.T) {
	src, dst := setup(t)
	testutil.Exec(t, dst,
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE stale (id INTEGER)`,
	)
	o := newOrchestrator(t, src, dst, orchestrator.Options{}, nil)
	ctx := context.Background()

	dry, err := o.SyncSchema(ctx, orchestrator.SyncOptions{})
	require.NoError(t, err)
	assert.True(t, dry.Success)
	assert.Zero(t, dry.AppliedChanges)
	assert.Contains(t, dry.SQLStatements, `ALTER TABLE "users" ADD COLUMN "active" BOOLEAN DEFAULT 1;`)
	for _, s := range dry.SQLStatements {
		assert.False(t, strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "DROP"), s)
	}

	cmp, err := o.CompareSchemas(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cmp.AdditiveDifferences(), "dry run must not touch the target")

	applied, err := o.SyncSchema(ctx, orchestrator.SyncOptions{Apply: true})
	require.NoError(t, err)
	require.True(t, applied.Success, "%v", applied.Errors)
	assert.Positive(t, applied.AppliedChanges)

	cmp, err = o.CompareSchemas(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.AdditiveDifferences())
	assert.Equal(t, 1, cmp.Summary[diff.TableRemoved])
}

func TestSyncSchemaApplyNeedsLock(t *testing.T) {
	src, dst := setup(t)
	lock := orchestrator.NewLock()
	_, err := lock.TryAcquire()
	require.NoError(t, err)

	o := newOrchestrator(t, src, dst, orchestrator.Options{}, lock)
	_, err = o.SyncSchema(context.Background(), orchestrator.SyncOptions{Apply: true})
	assert.ErrorIs(t, err, orchestrator.ErrLocked)

	_, err = o.SyncSchema(context.Background(), orchestrator.SyncOptions{})
	assert.NoError(t, err)
}
