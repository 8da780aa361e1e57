package schema

import (
	"context"
	"fmt"
	"strings"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"
)

// InternalTables are bookkeeping tables owned by the migration tooling itself.
// They are never reported by an Introspector.
var InternalTables = []string{"_migrations", "_migrations_lock"}

// Introspector reads the live structure of one database.
//
// A failure while reading any table fails the whole call; callers never see
// a snapshot with some tables silently missing.
type Introspector interface {
	Introspect(ctx context.Context) ([]*TableSchema, error)
}

// NewIntrospector returns the Introspector for d's engine.
func NewIntrospector(conn database.Conn, d dialect.Dialect) Introspector {
	switch d.Kind() {
	case dialect.Postgres:
		return &postgresIntrospector{conn: conn, dialect: d}
	default:
		return &sqliteIntrospector{conn: conn, dialect: d}
	}
}

func isInternalTable(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "sqlite_") {
		return true
	}
	for _, t := range InternalTables {
		if lower == t {
			return true
		}
	}
	return false
}

// CountRows runs SELECT COUNT(*) for table.
func CountRows(ctx context.Context, conn database.Conn, d dialect.Dialect, table string) (int64, error) {
	var n int64
	if err := conn.QueryRowContext(ctx, d.CountQuery(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// queryStrings drains a single-column result into a slice and closes the rows
// before returning, so the next statement can reuse the connection.
func queryStrings(ctx context.Context, conn database.Conn, query string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func finishTable(t *TableSchema) {
	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, c := range t.PrimaryKey {
		pk[c] = true
	}
	unique := make(map[string]bool)
	for _, c := range t.Constraints {
		if c.Type == ConstraintUnique && !strings.Contains(c.Expression, ",") {
			unique[c.Expression] = true
		}
	}
	for _, idx := range t.Indexes {
		if idx.Unique && len(idx.Columns) == 1 && idx.Partial == "" {
			unique[idx.Columns[0]] = true
		}
	}
	for i := range t.Columns {
		c := &t.Columns[i]
		c.PrimaryKey = pk[c.Name]
		c.Unique = unique[c.Name] || (c.PrimaryKey && len(t.PrimaryKey) == 1)
	}
	if len(t.PrimaryKey) > 0 {
		t.Constraints = append([]ConstraintSchema{{
			Name:       t.Name + "_pkey",
			Type:       ConstraintPrimaryKey,
			Expression: strings.Join(t.PrimaryKey, ", "),
		}}, t.Constraints...)
	}
}
