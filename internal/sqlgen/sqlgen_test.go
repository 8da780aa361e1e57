package sqlgen_test

import (
	"context"
	"strings"
	"testing"

	"db-migrate/internal/diff"
	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
	"db-migrate/internal/sqlgen"
	"db-migrate/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sqliteDialect   = dialect.MustGetDialect(dialect.SQLite)
	postgresDialect = dialect.MustGetDialect(dialect.Postgres)
)

func strPtr(s string) *string { return &s }

func usersTable() *schema.TableSchema {
	return &schema.TableSchema{
		Name: "users",
		Columns: []schema.ColumnSchema{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true, Unique: true},
			{Name: "email", Type: "VARCHAR(255)", Unique: true},
			{Name: "active", Type: "BOOLEAN", Nullable: true, DefaultValue: strPtr("1")},
			{Name: "score", Type: "REAL", Nullable: true, DefaultValue: strPtr("0.5")},
			{Name: "created_at", Type: "DATETIME", DefaultValue: strPtr("CURRENT_TIMESTAMP")},
		},
		PrimaryKey: []string{"id"},
		Indexes: []schema.IndexSchema{
			{Name: "idx_users_active", TableName: "users", Columns: []string{"active"}, Partial: "active = 1"},
		},
		Constraints: []schema.ConstraintSchema{
			{Name: "users_pkey", Type: schema.ConstraintPrimaryKey, Expression: "id"},
			{Name: "sqlite_autoindex_users_1", Type: schema.ConstraintUnique, Expression: "email"},
			{Type: schema.ConstraintCheck, Expression: "score >= 0"},
		},
	}
}

func postsTable() *schema.TableSchema {
	return &schema.TableSchema{
		Name: "posts",
		Columns: []schema.ColumnSchema{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true, Unique: true},
			{Name: "user_id", Type: "INTEGER"},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []schema.ForeignKeySchema{
			{Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}, OnDelete: "CASCADE"},
		},
		Constraints: []schema.ConstraintSchema{
			{Name: "posts_pkey", Type: schema.ConstraintPrimaryKey, Expression: "id"},
		},
	}
}

func TestAddColumnScenario(t *testing.T) {
	withBio := usersTable()
	withBio.Columns = append(withBio.Columns, schema.ColumnSchema{Name: "bio", Type: "TEXT", Nullable: true})

	r := diff.CompareSchemas([]*schema.TableSchema{withBio}, []*schema.TableSchema{usersTable()}, dialect.SQLite, dialect.SQLite)
	stmts := sqlgen.GenerateSyncSQL(r, sqliteDialect)

	assert.Equal(t, []string{`ALTER TABLE "users" ADD COLUMN "bio" TEXT;`}, stmts)
}

func TestAddColumnNotNullNeedsDefault(t *testing.T) {
	col := schema.ColumnSchema{Name: "rank", Type: "INTEGER"}
	assert.Equal(t, `ALTER TABLE "t" ADD COLUMN "rank" INTEGER;`,
		sqlgen.AddColumnStatement("t", col, dialect.SQLite, postgresDialect))

	col.DefaultValue = strPtr("0")
	assert.Equal(t, `ALTER TABLE "t" ADD COLUMN "rank" INTEGER NOT NULL DEFAULT 0;`,
		sqlgen.AddColumnStatement("t", col, dialect.SQLite, postgresDialect))
}

func TestTableRemovedIsOnlyAComment(t *testing.T) {
	r := diff.CompareSchemas(nil, []*schema.TableSchema{usersTable()}, dialect.SQLite, dialect.Postgres)
	stmts := sqlgen.GenerateSyncSQL(r, postgresDialect)

	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0], "-- WARNING:"))
	assert.True(t, sqlgen.IsComment(stmts[0]))
	assert.NotContains(t, strings.ToUpper(stmts[0]), "DROP")
}

func TestNoExecutableDropForDestructiveChanges(t *testing.T) {
	src := usersTable()
	dst := usersTable()
	dst.Columns = append(dst.Columns, schema.ColumnSchema{Name: "legacy", Type: "TEXT", Nullable: true})
	dst.Columns[1].Type = "INTEGER"
	dst.Indexes = append(dst.Indexes, schema.IndexSchema{Name: "idx_old", TableName: "users", Columns: []string{"legacy"}})

	r := diff.CompareSchemas([]*schema.TableSchema{src}, []*schema.TableSchema{dst, postsTable()}, dialect.SQLite, dialect.SQLite)
	stmts := sqlgen.GenerateSyncSQL(r, sqliteDialect)

	require.Len(t, stmts, len(r.Differences))
	for _, s := range stmts {
		assert.True(t, sqlgen.IsComment(s), s)
	}
}

func TestCreateTablePostgres(t *testing.T) {
	stmts := sqlgen.CreateTableStatements(usersTable(), dialect.SQLite, postgresDialect)

	require.Len(t, stmts, 2)
	assert.Equal(t, `CREATE TABLE "users" (
  "id" INTEGER GENERATED BY DEFAULT AS IDENTITY,
  "email" VARCHAR(255) NOT NULL,
  "active" BOOLEAN DEFAULT TRUE,
  "score" DOUBLE PRECISION DEFAULT 0.5,
  "created_at" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY ("id"),
  UNIQUE ("email"),
  CHECK (score >= 0)
);`, stmts[0])
	assert.Equal(t, `CREATE INDEX "idx_users_active" ON "users" ("active") WHERE active = 1;`, stmts[1])
}

func TestCreateTableSQLiteFromPostgres(t *testing.T) {
	tbl := &schema.TableSchema{
		Name: "accounts",
		Columns: []schema.ColumnSchema{
			{Name: "id", Type: "bigint", PrimaryKey: true, AutoIncrement: true, DefaultValue: strPtr("nextval('accounts_id_seq'::regclass)")},
			{Name: "name", Type: "character varying(40)", DefaultValue: strPtr("'anon'::character varying")},
			{Name: "enabled", Type: "boolean", DefaultValue: strPtr("true")},
			{Name: "tags", Type: "text[]", Nullable: true},
			{Name: "owner_id", Type: "bigint", Nullable: true},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []schema.ForeignKeySchema{
			{Name: "accounts_owner_fk", Columns: []string{"owner_id"}, ReferencedTable: "accounts", ReferencedColumns: []string{"id"}, OnDelete: "SET NULL"},
		},
		Constraints: []schema.ConstraintSchema{
			{Name: "accounts_pkey", Type: schema.ConstraintPrimaryKey, Expression: "id"},
			{Name: "accounts_name_key", Type: schema.ConstraintUnique, Expression: "name"},
		},
	}

	stmts := sqlgen.CreateTableStatements(tbl, dialect.Postgres, sqliteDialect)
	require.Len(t, stmts, 1)
	assert.Equal(t, `CREATE TABLE "accounts" (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "name" TEXT NOT NULL DEFAULT 'anon',
  "enabled" INTEGER NOT NULL DEFAULT 1,
  "tags" TEXT,
  "owner_id" INTEGER,
  CONSTRAINT "accounts_name_key" UNIQUE ("name"),
  FOREIGN KEY ("owner_id") REFERENCES "accounts" ("id") ON DELETE SET NULL
);`, stmts[0])
}

func TestTranslateCheck(t *testing.T) {
	tests := []struct {
		expr     string
		from     dialect.Kind
		to       dialect.Dialect
		expected string
		ok       bool
	}{
		{"score >= 0", dialect.SQLite, postgresDialect, "score >= 0", true},
		{"length(email) > 3", dialect.SQLite, postgresDialect, "length(email) > 3", true},
		{"typeof(n) = 'integer'", dialect.SQLite, postgresDialect, "", false},
		{"code GLOB '[A-Z]*'", dialect.SQLite, postgresDialect, "", false},
		{"(status)::text = ANY ((ARRAY['active'::character varying, 'banned'::character varying])::text[])",
			dialect.Postgres, sqliteDialect, "status IN ('active', 'banned')", true},
		{"(kind)::text <> ALL ((ARRAY['x'::character varying])::text[])",
			dialect.Postgres, sqliteDialect, "kind NOT IN ('x')", true},
		{"price > (0)::numeric", dialect.Postgres, sqliteDialect, "price > (0)", true},
		{"(name)::text ~~ 'a%'::text", dialect.Postgres, sqliteDialect, "name LIKE 'a%'", true},
		{"lower(name) <> ''::text", dialect.Postgres, sqliteDialect, "lower(name) <> ''", true},
		{"note <> 'a::b'::text", dialect.Postgres, sqliteDialect, "note <> 'a::b'", true},
		{"name ~ '^[a-z]+$'::text", dialect.Postgres, sqliteDialect, "", false},
		{"tags @> ARRAY['x'::text]", dialect.Postgres, sqliteDialect, "", false},
		{"(status)::text = 'x'::text", dialect.Postgres, postgresDialect, "(status)::text = 'x'::text", true},
	}
	for _, tt := range tests {
		got, ok := sqlgen.TranslateCheck(tt.expr, tt.from, tt.to)
		assert.Equal(t, tt.ok, ok, tt.expr)
		assert.Equal(t, tt.expected, got, tt.expr)
	}
}

func TestCreateTableSQLiteFromPostgresChecks(t *testing.T) {
	tbl := &schema.TableSchema{
		Name: "members",
		Columns: []schema.ColumnSchema{
			{Name: "id", Type: "integer", PrimaryKey: true, AutoIncrement: true},
			{Name: "status", Type: "character varying(20)"},
			{Name: "handle", Type: "text", Nullable: true},
		},
		PrimaryKey: []string{"id"},
		Constraints: []schema.ConstraintSchema{
			{Name: "members_status_check", Type: schema.ConstraintCheck,
				Expression: "(status)::text = ANY ((ARRAY['active'::character varying, 'banned'::character varying])::text[])"},
			{Name: "members_handle_check", Type: schema.ConstraintCheck, Expression: "handle ~ '^[a-z]+$'::text"},
		},
		Indexes: []schema.IndexSchema{
			{Name: "idx_members_handle", TableName: "members", Columns: []string{"handle"}, Partial: "(handle)::text <> ''::text"},
			{Name: "idx_members_re", TableName: "members", Columns: []string{"handle"}, Partial: "handle ~ 'x'::text"},
		},
	}

	stmts := sqlgen.CreateTableStatements(tbl, dialect.Postgres, sqliteDialect)
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], `CONSTRAINT "members_status_check" CHECK (status IN ('active', 'banned'))`)
	assert.NotContains(t, stmts[0], "~")
	assert.True(t, sqlgen.IsComment(stmts[1]))
	assert.Contains(t, stmts[1], "handle ~ '^[a-z]+$'::text")
	assert.Equal(t, `CREATE INDEX "idx_members_handle" ON "members" ("handle") WHERE handle <> '';`, stmts[2])
	assert.True(t, sqlgen.IsComment(stmts[3]))

	db := testutil.OpenSQLite(t, "checks")
	res := sqlgen.ApplySchemaSynchronization(context.Background(), db, stmts, sqlgen.ApplyOptions{})
	require.True(t, res.Success, "%v", res.Errors)
	assert.Len(t, res.AppliedStatements, 2)

	testutil.Exec(t, db, `INSERT INTO members (status, handle) VALUES ('active', 'ada')`)
	_, err := db.Exec(`INSERT INTO members (status, handle) VALUES ('unknown', 'bob')`)
	assert.Error(t, err)
}

func TestApplyStopsOnFirstError(t *testing.T) {
	db := testutil.OpenSQLite(t, "apply")
	stmts := []string{
		"-- WARNING: nothing to do",
		`CREATE TABLE "a" ("id" INTEGER);`,
		`CREATE TABLE "a" ("id" INTEGER);`,
		`CREATE TABLE "b" ("id" INTEGER);`,
	}

	res := sqlgen.ApplySchemaSynchronization(context.Background(), db, stmts, sqlgen.ApplyOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, stmts[1:2], res.AppliedStatements)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, stmts[2], res.Errors[0].SQL)
	assert.Error(t, res.Errors[0].Err)
}

func TestApplyForceContinues(t *testing.T) {
	db := testutil.OpenSQLite(t, "apply_force")
	stmts := []string{
		`CREATE TABLE "a" ("id" INTEGER);`,
		`CREATE TABLE "a" ("id" INTEGER);`,
		`CREATE TABLE "b" ("id" INTEGER);`,
	}

	res := sqlgen.ApplySchemaSynchronization(context.Background(), db, stmts, sqlgen.ApplyOptions{Force: true})
	assert.False(t, res.Success)
	assert.Equal(t, []string{stmts[0], stmts[2]}, res.AppliedStatements)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, int64(0), testutil.Count(t, db, "b"))
}

func TestSyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := testutil.OpenSQLite(t, "source")
	target := testutil.OpenSQLite(t, "target")

	testutil.Exec(t, source,
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE, bio TEXT, CHECK (length(email) > 3))`,
		`CREATE INDEX idx_users_bio ON users (bio)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), body TEXT DEFAULT 'x')`,
		`CREATE UNIQUE INDEX idx_posts_body ON posts (body) WHERE body IS NOT NULL`,
	)
	testutil.Exec(t, target,
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE stale (id INTEGER)`,
	)

	introspect := func(db schema.Introspector) []*schema.TableSchema {
		tables, err := db.Introspect(ctx)
		require.NoError(t, err)
		return tables
	}
	srcTables := introspect(schema.NewIntrospector(source, sqliteDialect))

	r := diff.CompareSchemas(srcTables, introspect(schema.NewIntrospector(target, sqliteDialect)), dialect.SQLite, dialect.SQLite)
	require.NotEmpty(t, r.AdditiveDifferences())

	res := sqlgen.ApplySchemaSynchronization(ctx, target, sqlgen.GenerateSyncSQL(r, sqliteDialect), sqlgen.ApplyOptions{})
	require.True(t, res.Success, "%v", res.Errors)

	after := diff.CompareSchemas(srcTables, introspect(schema.NewIntrospector(target, sqliteDialect)), dialect.SQLite, dialect.SQLite)
	assert.Empty(t, after.AdditiveDifferences())
	assert.Equal(t, 1, after.Summary[diff.TableRemoved])
}

func TestAddForeignKeyStatement(t *testing.T) {
	fk := schema.ForeignKeySchema{
		Name: "a_b_fk", Columns: []string{"b_id"}, ReferencedTable: "b", ReferencedColumns: []string{"id"}, OnUpdate: "CASCADE",
	}
	assert.Equal(t, `ALTER TABLE "a" ADD CONSTRAINT "a_b_fk" FOREIGN KEY ("b_id") REFERENCES "b" ("id") ON UPDATE CASCADE;`,
		sqlgen.AddForeignKeyStatement("a", fk, postgresDialect))
}
