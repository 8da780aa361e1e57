package schema_test

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
	"db-migrate/internal/testutil"
	"db-migrate/internal/typemap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parityDDL = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		age INTEGER CHECK (age >= 0),
		bio TEXT DEFAULT 'none'
	)`,
	`CREATE TABLE posts (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT
	)`,
	`CREATE INDEX idx_posts_user ON posts (user_id)`,
	`CREATE UNIQUE INDEX idx_posts_title ON posts (title) WHERE title IS NOT NULL`,
}

func introspect(t *testing.T, db *sql.DB, kind dialect.Kind) []*schema.TableSchema {
	testutil.Exec(t, db, parityDDL...)
	tables, err := schema.NewIntrospector(db, dialect.MustGetDialect(kind)).Introspect(context.Background())
	require.NoError(t, err)
	return tables
}

func constraintTypes(t *schema.TableSchema) []string {
	var out []string
	for _, c := range t.Constraints {
		out = append(out, string(c.Type)+":"+c.Expression)
	}
	sort.Strings(out)
	return out
}

func TestPostgresIntrospectMatchesSQLite(t *testing.T) {
	pg := introspect(t, testutil.OpenPostgres(t), dialect.Postgres)
	lite := introspect(t, testutil.OpenSQLite(t, "parity"), dialect.SQLite)

	require.Len(t, pg, len(lite))
	for i, lt := range lite {
		pt := pg[i]
		require.Equal(t, lt.Name, pt.Name)

		assert.Equal(t, lt.ColumnNames(), pt.ColumnNames(), lt.Name)
		assert.Equal(t, lt.PrimaryKey, pt.PrimaryKey, lt.Name)
		for j, lc := range lt.Columns {
			pc := pt.Columns[j]
			assert.Equal(t, lc.Nullable, pc.Nullable, "%s.%s nullable", lt.Name, lc.Name)
			assert.Equal(t, lc.Unique, pc.Unique, "%s.%s unique", lt.Name, lc.Name)
			assert.True(t, typemap.AreTypesCompatible(lc.Type, pc.Type, dialect.SQLite, dialect.Postgres),
				"%s.%s: %s vs %s", lt.Name, lc.Name, lc.Type, pc.Type)
		}

		require.Len(t, pt.ForeignKeys, len(lt.ForeignKeys), lt.Name)
		for j, lf := range lt.ForeignKeys {
			pf := pt.ForeignKeys[j]
			assert.Equal(t, lf.Columns, pf.Columns)
			assert.Equal(t, lf.ReferencedTable, pf.ReferencedTable)
			assert.Equal(t, lf.ReferencedColumns, pf.ReferencedColumns)
			assert.Equal(t, lf.OnDelete, pf.OnDelete)
		}

		require.Len(t, pt.Indexes, len(lt.Indexes), lt.Name)
		for j, li := range lt.Indexes {
			pi := pt.Indexes[j]
			assert.Equal(t, li.Name, pi.Name)
			assert.Equal(t, li.Columns, pi.Columns)
			assert.Equal(t, li.Unique, pi.Unique)
			assert.Equal(t, li.Partial, pi.Partial)
		}

		assert.Equal(t, constraintTypes(lt), constraintTypes(pt), lt.Name)
	}
}
