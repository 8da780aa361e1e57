package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"
)

type postgresIntrospector struct {
	conn    database.Conn
	dialect dialect.Dialect
}

func (p *postgresIntrospector) Introspect(ctx context.Context) ([]*TableSchema, error) {
	names, err := queryStrings(ctx, p.conn, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	var tables []*TableSchema
	for _, name := range names {
		if isInternalTable(name) {
			continue
		}
		t, err := p.introspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect table %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (p *postgresIntrospector) introspectTable(ctx context.Context, name string) (*TableSchema, error) {
	t := &TableSchema{Name: name}

	if err := p.introspectColumns(ctx, t); err != nil {
		return nil, err
	}
	if err := p.introspectConstraints(ctx, t); err != nil {
		return nil, err
	}
	if err := p.introspectIndexes(ctx, t); err != nil {
		return nil, err
	}
	if err := p.introspectForeignKeys(ctx, t); err != nil {
		return nil, err
	}

	finishTable(t)

	var err error
	if t.RowCount, err = CountRows(ctx, p.conn, p.dialect, name); err != nil {
		return nil, err
	}
	return t, nil
}

// format_type keeps length and precision, e.g. "character varying(255)".
const pgColumnsQuery = `
	SELECT
		a.attname,
		pg_catalog.format_type(a.atttypid, a.atttypmod),
		NOT a.attnotnull,
		pg_catalog.pg_get_expr(d.adbin, d.adrelid),
		a.attidentity <> ''
	FROM pg_catalog.pg_attribute a
	JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
	WHERE n.nspname = current_schema()
		AND c.relname = $1
		AND a.attnum > 0
		AND NOT a.attisdropped
	ORDER BY a.attnum`

func (p *postgresIntrospector) introspectColumns(ctx context.Context, t *TableSchema) error {
	rows, err := p.conn.QueryContext(ctx, pgColumnsQuery, t.Name)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col ColumnSchema
		var dflt sql.NullString
		var identity bool
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &dflt, &identity); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		if dflt.Valid {
			v := dflt.String
			col.DefaultValue = &v
		}
		col.AutoIncrement = identity || (dflt.Valid && strings.HasPrefix(dflt.String, "nextval("))
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

const pgConstraintsQuery = `
	SELECT
		con.conname,
		con.contype::text,
		COALESCE(pg_catalog.pg_get_expr(con.conbin, con.conrelid), ''),
		COALESCE((
			SELECT string_agg(a.attname, ', ' ORDER BY k.n)
			FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, n)
			JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		), '')
	FROM pg_catalog.pg_constraint con
	JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = current_schema()
		AND c.relname = $1
		AND con.contype IN ('p', 'u', 'c')
	ORDER BY con.conname`

func (p *postgresIntrospector) introspectConstraints(ctx context.Context, t *TableSchema) error {
	rows, err := p.conn.QueryContext(ctx, pgConstraintsQuery, t.Name)
	if err != nil {
		return fmt.Errorf("query constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, expr, cols string
		if err := rows.Scan(&name, &kind, &expr, &cols); err != nil {
			return fmt.Errorf("scan constraint: %w", err)
		}
		switch kind {
		case "p":
			t.PrimaryKey = strings.Split(cols, ", ")
		case "u":
			t.Constraints = append(t.Constraints, ConstraintSchema{Name: name, Type: ConstraintUnique, Expression: cols})
		case "c":
			t.Constraints = append(t.Constraints, ConstraintSchema{Name: name, Type: ConstraintCheck, Expression: stripOuterParens(expr)})
		}
	}
	return rows.Err()
}

// Indexes that back a constraint are reported through the constraint instead.
const pgIndexesQuery = `
	SELECT
		i.relname,
		ix.indisunique,
		COALESCE((
			SELECT string_agg(a.attname, ',' ORDER BY k.n)
			FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, n)
			JOIN pg_catalog.pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
		), ''),
		COALESCE(pg_catalog.pg_get_expr(ix.indpred, ix.indrelid), '')
	FROM pg_catalog.pg_index ix
	JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
	JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
	WHERE n.nspname = current_schema()
		AND t.relname = $1
		AND NOT ix.indisprimary
		AND NOT EXISTS (
			SELECT 1 FROM pg_catalog.pg_constraint con WHERE con.conindid = ix.indexrelid
		)
	ORDER BY i.relname`

func (p *postgresIntrospector) introspectIndexes(ctx context.Context, t *TableSchema) error {
	rows, err := p.conn.QueryContext(ctx, pgIndexesQuery, t.Name)
	if err != nil {
		return fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx IndexSchema
		var cols, pred string
		if err := rows.Scan(&idx.Name, &idx.Unique, &cols, &pred); err != nil {
			return fmt.Errorf("scan index: %w", err)
		}
		if cols == "" {
			continue // expression index
		}
		idx.TableName = t.Name
		idx.Columns = strings.Split(cols, ",")
		idx.Partial = stripOuterParens(pred)
		t.Indexes = append(t.Indexes, idx)
	}
	return rows.Err()
}

const pgForeignKeysQuery = `
	SELECT
		con.conname,
		rc.relname,
		(
			SELECT string_agg(a.attname, ',' ORDER BY k.n)
			FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, n)
			JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		),
		(
			SELECT string_agg(a.attname, ',' ORDER BY k.n)
			FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, n)
			JOIN pg_catalog.pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
		),
		con.confdeltype::text,
		con.confupdtype::text
	FROM pg_catalog.pg_constraint con
	JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
	JOIN pg_catalog.pg_class rc ON rc.oid = con.confrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = current_schema()
		AND c.relname = $1
		AND con.contype = 'f'
	ORDER BY con.conname`

func (p *postgresIntrospector) introspectForeignKeys(ctx context.Context, t *TableSchema) error {
	rows, err := p.conn.QueryContext(ctx, pgForeignKeysQuery, t.Name)
	if err != nil {
		return fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKeySchema
		var cols, refCols, onDelete, onUpdate string
		if err := rows.Scan(&fk.Name, &fk.ReferencedTable, &cols, &refCols, &onDelete, &onUpdate); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		fk.Columns = strings.Split(cols, ",")
		fk.ReferencedColumns = strings.Split(refCols, ",")
		fk.OnDelete = pgReferentialAction(onDelete)
		fk.OnUpdate = pgReferentialAction(onUpdate)
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return rows.Err()
}

func pgReferentialAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default: // "a": no action
		return ""
	}
}

// stripOuterParens turns "(age > 0)" into "age > 0" when the outer pair
// encloses the whole expression.
func stripOuterParens(expr string) string {
	expr = strings.TrimSpace(expr)
	for len(expr) >= 2 && expr[0] == '(' && matchParen(expr, 0) == len(expr)-1 {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}
