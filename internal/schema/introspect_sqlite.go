package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"
)

type sqliteIntrospector struct {
	conn    database.Conn
	dialect dialect.Dialect
}

// Every PRAGMA result is drained and closed before the next statement runs:
// SQLite handles are opened with a single connection.

func (s *sqliteIntrospector) Introspect(ctx context.Context) ([]*TableSchema, error) {
	names, err := queryStrings(ctx, s.conn,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	var tables []*TableSchema
	for _, name := range names {
		if isInternalTable(name) {
			continue
		}
		t, err := s.introspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect table %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (s *sqliteIntrospector) introspectTable(ctx context.Context, name string) (*TableSchema, error) {
	t := &TableSchema{Name: name}

	var createSQL sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&createSQL)
	if err != nil {
		return nil, fmt.Errorf("read table definition: %w", err)
	}

	if err := s.introspectColumns(ctx, t, createSQL.String); err != nil {
		return nil, err
	}
	if err := s.introspectIndexes(ctx, t); err != nil {
		return nil, err
	}
	if err := s.introspectForeignKeys(ctx, t); err != nil {
		return nil, err
	}
	for _, expr := range parseCheckConstraints(createSQL.String) {
		t.Constraints = append(t.Constraints, ConstraintSchema{Type: ConstraintCheck, Expression: expr})
	}

	finishTable(t)

	if t.RowCount, err = CountRows(ctx, s.conn, s.dialect, name); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sqliteIntrospector) introspectColumns(ctx context.Context, t *TableSchema, createSQL string) error {
	// cid, name, type, notnull, dflt_value, pk
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", s.dialect.QuoteIdent(t.Name)))
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	type pkCol struct {
		name string
		pos  int
	}
	var pks []pkCol

	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		col := ColumnSchema{
			Name:     name,
			Type:     dataType,
			Nullable: notNull == 0,
		}
		if dflt.Valid {
			v := dflt.String
			col.DefaultValue = &v
		}
		if pk > 0 {
			pks = append(pks, pkCol{name: name, pos: pk})
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	for _, p := range pks {
		t.PrimaryKey = append(t.PrimaryKey, p.name)
	}

	// Outside WITHOUT ROWID tables SQLite accepts NULL in primary key columns
	// unless NOT NULL is declared. The exception is a single INTEGER PRIMARY
	// KEY: it aliases the rowid and is assigned automatically.
	withoutRowid := strings.Contains(strings.ToUpper(createSQL), "WITHOUT ROWID")
	for i := range t.Columns {
		c := &t.Columns[i]
		for _, p := range pks {
			if c.Name != p.name {
				continue
			}
			if withoutRowid {
				c.Nullable = false
			}
			if len(pks) == 1 && (strings.EqualFold(c.Type, "INTEGER") ||
				strings.Contains(strings.ToUpper(createSQL), "AUTOINCREMENT")) {
				c.AutoIncrement = true
				c.Nullable = false
			}
		}
	}
	return nil
}

type sqliteIndexEntry struct {
	name    string
	unique  bool
	origin  string
	partial bool
}

func (s *sqliteIntrospector) introspectIndexes(ctx context.Context, t *TableSchema) error {
	// seq, name, unique, origin, partial
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", s.dialect.QuoteIdent(t.Name)))
	if err != nil {
		return fmt.Errorf("query indexes: %w", err)
	}
	var entries []sqliteIndexEntry
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return fmt.Errorf("scan index: %w", err)
		}
		entries = append(entries, sqliteIndexEntry{name: name, unique: unique == 1, origin: origin, partial: partial == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate indexes: %w", err)
	}
	rows.Close()

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		if e.origin == "pk" {
			continue
		}
		cols, err := queryIndexColumns(ctx, s.conn, s.dialect, e.name)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			continue // expression index
		}

		if e.origin == "u" {
			t.Constraints = append(t.Constraints, ConstraintSchema{
				Name:       e.name,
				Type:       ConstraintUnique,
				Expression: strings.Join(cols, ", "),
			})
			continue
		}

		idx := IndexSchema{Name: e.name, TableName: t.Name, Columns: cols, Unique: e.unique}
		if e.partial {
			var indexSQL sql.NullString
			err := s.conn.QueryRowContext(ctx,
				`SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?`, e.name).Scan(&indexSQL)
			if err != nil {
				return fmt.Errorf("read index definition %s: %w", e.name, err)
			}
			idx.Partial = partialPredicate(indexSQL.String)
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return nil
}

func queryIndexColumns(ctx context.Context, conn database.Conn, d dialect.Dialect, index string) ([]string, error) {
	// seqno, cid, name
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", d.QuoteIdent(index)))
	if err != nil {
		return nil, fmt.Errorf("query index columns %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scan index column %s: %w", index, err)
		}
		if !name.Valid {
			return nil, nil
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

func (s *sqliteIntrospector) introspectForeignKeys(ctx context.Context, t *TableSchema) error {
	// id, seq, table, from, to, on_update, on_delete, match
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", s.dialect.QuoteIdent(t.Name)))
	if err != nil {
		return fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	byID := make(map[int]*ForeignKeySchema)
	var order []int
	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		fk, ok := byID[id]
		if !ok {
			fk = &ForeignKeySchema{
				Name:            fmt.Sprintf("fk_%s_%d", t.Name, id),
				ReferencedTable: refTable,
				OnDelete:        referentialAction(onDelete),
				OnUpdate:        referentialAction(onUpdate),
			}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		if to.Valid {
			fk.ReferencedColumns = append(fk.ReferencedColumns, to.String)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign keys: %w", err)
	}

	sort.Ints(order)
	for _, id := range order {
		t.ForeignKeys = append(t.ForeignKeys, *byID[id])
	}
	return nil
}

func referentialAction(a string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	if a == "NO ACTION" {
		return ""
	}
	return a
}

// partialPredicate returns the WHERE clause of a CREATE INDEX statement.
func partialPredicate(indexSQL string) string {
	i := strings.LastIndex(strings.ToUpper(indexSQL), " WHERE ")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(indexSQL[i+7:]), ";"))
}

// parseCheckConstraints extracts the expressions of CHECK clauses from a
// CREATE TABLE statement, skipping string literals while balancing parens.
func parseCheckConstraints(createSQL string) []string {
	var out []string
	upper := strings.ToUpper(createSQL)
	pos := 0
	for {
		i := strings.Index(upper[pos:], "CHECK")
		if i < 0 {
			return out
		}
		i += pos
		pos = i + len("CHECK")
		if i > 0 && isIdentByte(upper[i-1]) {
			continue
		}
		j := pos
		for j < len(createSQL) && (createSQL[j] == ' ' || createSQL[j] == '\t' || createSQL[j] == '\n' || createSQL[j] == '\r') {
			j++
		}
		if j >= len(createSQL) || createSQL[j] != '(' {
			continue
		}
		end := matchParen(createSQL, j)
		if end < 0 {
			return out
		}
		out = append(out, strings.TrimSpace(createSQL[j+1:end]))
		pos = end + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '"'
}

func matchParen(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
