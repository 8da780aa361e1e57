// Package sqlgen turns schema differences into DDL for the target dialect
// and applies it.
package sqlgen

import (
	"fmt"
	"strings"

	"db-migrate/internal/diff"
	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
	"db-migrate/internal/typemap"
)

// CommentPrefix starts every non-executable line in generated output.
const CommentPrefix = "--"

// GenerateSyncSQL renders the statements that bring the target in line with
// the source. Only additions become DDL; every other difference is emitted
// as a warning comment and needs a manual decision.
func GenerateSyncSQL(result diff.Result, target dialect.Dialect) []string {
	var out []string
	for _, d := range result.Differences {
		switch d.Type {
		case diff.TableAdded:
			out = append(out, CreateTableStatements(d.Details.SourceTable, result.SourceDialect, target)...)
		case diff.ColumnAdded:
			out = append(out, AddColumnStatement(d.Table, *d.Details.SourceColumn, result.SourceDialect, target))
		case diff.IndexAdded:
			out = append(out, indexStatement(*d.Details.Index, result.SourceDialect, target))
		default:
			out = append(out, warning(d))
		}
	}
	return out
}

func warning(d diff.SchemaDifference) string {
	var action string
	switch d.Type {
	case diff.TableRemoved:
		action = "table is kept; remove it manually if it is no longer needed"
	case diff.ColumnRemoved:
		action = "column is kept; remove it manually if it is no longer needed"
	case diff.IndexRemoved:
		action = "index is kept"
	case diff.ColumnModified:
		action = "column definition is not changed automatically"
	default:
		action = "constraints are not changed automatically"
	}
	msg := strings.ReplaceAll(d.Details.Message, "\n", " ")
	return fmt.Sprintf("%s WARNING: %s (%s)", CommentPrefix, msg, action)
}

// IsComment reports whether stmt has no executable content.
func IsComment(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, CommentPrefix) {
			return false
		}
	}
	return true
}

// CreateTableStatements renders CREATE TABLE for t followed by its indexes.
// Column types are mapped from the from dialect. A CHECK the target cannot
// parse is left out and reported by a warning comment after the table.
func CreateTableStatements(t *schema.TableSchema, from dialect.Kind, d dialect.Dialect) []string {
	var lines []string
	inlinePK := false

	for _, col := range t.Columns {
		typ := typemap.MapType(col.Type, from, d.Kind())
		if col.AutoIncrement && len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == col.Name {
			def, inline := d.AutoIncrementColumn(col.Name, typ)
			inlinePK = inline
			lines = append(lines, def)
			continue
		}
		lines = append(lines, columnDefinition(col, typ, from, d, !col.Nullable))
	}

	if len(t.PrimaryKey) > 0 && !inlinePK {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", dialect.QuoteList(t.PrimaryKey, d.QuoteIdent)))
	}

	var skipped []string
	for _, c := range t.Constraints {
		switch c.Type {
		case schema.ConstraintUnique:
			lines = append(lines, constraintName(c, d)+fmt.Sprintf("UNIQUE (%s)",
				dialect.QuoteList(splitColumns(c.Expression), d.QuoteIdent)))
		case schema.ConstraintCheck:
			expr, ok := TranslateCheck(c.Expression, from, d)
			if !ok {
				skipped = append(skipped, fmt.Sprintf("%s WARNING: CHECK (%s) on %s cannot be expressed in %s and was left out (recreate it manually)",
					CommentPrefix, strings.ReplaceAll(c.Expression, "\n", " "), t.Name, d.Kind()))
				continue
			}
			lines = append(lines, constraintName(c, d)+fmt.Sprintf("CHECK (%s)", expr))
		}
	}

	for _, fk := range t.ForeignKeys {
		lines = append(lines, foreignKeyClause(fk, d))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", d.QuoteIdent(t.Name), strings.Join(lines, ",\n  "))}
	stmts = append(stmts, skipped...)
	for _, idx := range t.Indexes {
		stmts = append(stmts, indexStatement(idx, from, d))
	}
	return stmts
}

// AddColumnStatement renders ALTER TABLE ... ADD COLUMN. NOT NULL is only
// emitted together with a default, otherwise existing rows would violate it.
func AddColumnStatement(table string, col schema.ColumnSchema, from dialect.Kind, d dialect.Dialect) string {
	typ := typemap.MapType(col.Type, from, d.Kind())
	_, hasDefault := translateDefault(col, from, d)
	def := columnDefinition(col, typ, from, d, !col.Nullable && hasDefault)
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QuoteIdent(table), def)
}

// CreateIndexStatement renders CREATE [UNIQUE] INDEX with an optional predicate.
func CreateIndexStatement(idx schema.IndexSchema, d dialect.Dialect) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique,
		d.QuoteIdent(idx.Name), d.QuoteIdent(idx.TableName), dialect.QuoteList(idx.Columns, d.QuoteIdent))
	if idx.Partial != "" {
		stmt += " WHERE " + idx.Partial
	}
	return stmt + ";"
}

// indexStatement translates a partial index predicate like a CHECK; an
// index whose predicate cannot be carried over becomes a warning comment.
func indexStatement(idx schema.IndexSchema, from dialect.Kind, d dialect.Dialect) string {
	if idx.Partial != "" {
		pred, ok := TranslateCheck(idx.Partial, from, d)
		if !ok {
			return fmt.Sprintf("%s WARNING: index %s on %s has a predicate %s cannot parse and was not created (WHERE %s)",
				CommentPrefix, idx.Name, idx.TableName, d.Kind(), strings.ReplaceAll(idx.Partial, "\n", " "))
		}
		idx.Partial = pred
	}
	return CreateIndexStatement(idx, d)
}

// AddForeignKeyStatement renders ALTER TABLE ... ADD FOREIGN KEY, used for
// references that cannot be declared inline because of a cycle. SQLite has
// no such statement; it accepts forward references in CREATE TABLE instead.
func AddForeignKeyStatement(table string, fk schema.ForeignKeySchema, d dialect.Dialect) string {
	clause := foreignKeyClause(fk, d)
	if fk.Name != "" {
		clause = "CONSTRAINT " + d.QuoteIdent(fk.Name) + " " + clause
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", d.QuoteIdent(table), clause)
}

func foreignKeyClause(fk schema.ForeignKeySchema, d dialect.Dialect) string {
	ref := d.QuoteIdent(fk.ReferencedTable)
	if len(fk.ReferencedColumns) > 0 {
		ref += " (" + dialect.QuoteList(fk.ReferencedColumns, d.QuoteIdent) + ")"
	}
	clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s", dialect.QuoteList(fk.Columns, d.QuoteIdent), ref)
	if fk.OnDelete != "" {
		clause += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		clause += " ON UPDATE " + fk.OnUpdate
	}
	return clause
}

func columnDefinition(col schema.ColumnSchema, typ string, from dialect.Kind, d dialect.Dialect, notNull bool) string {
	def := d.QuoteIdent(col.Name) + " " + typ
	if notNull {
		def += " NOT NULL"
	}
	if v, ok := translateDefault(col, from, d); ok {
		def += " DEFAULT " + v
	}
	return def
}

// constraintName keeps user-given names; SQLite's generated autoindex names
// are dropped.
func constraintName(c schema.ConstraintSchema, d dialect.Dialect) string {
	if c.Name == "" || strings.HasPrefix(strings.ToLower(c.Name), "sqlite_") {
		return ""
	}
	return "CONSTRAINT " + d.QuoteIdent(c.Name) + " "
}

func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
