package dialect

import (
	"fmt"
)

type SQLiteDialect struct{}

func (d *SQLiteDialect) Kind() Kind {
	return SQLite
}

func (d *SQLiteDialect) QuoteIdent(name string) string {
	return QuoteDouble(name)
}

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

// MaxBindParams matches SQLITE_MAX_VARIABLE_NUMBER of SQLite >= 3.32.
func (d *SQLiteDialect) MaxBindParams() int {
	return 32766
}

func (d *SQLiteDialect) KeysetQuery(table, key string, cols []string, first bool, limit int) string {
	return buildKeysetQuery(d, table, key, cols, first, limit)
}

func (d *SQLiteDialect) OffsetQuery(table string, cols, orderBy []string, limit, offset int) string {
	return buildOffsetQuery(d, table, cols, orderBy, limit, offset)
}

func (d *SQLiteDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *SQLiteDialect) InsertQuery(table string, cols []string, rows int) string {
	return buildInsertQuery(d, table, cols, rows)
}

// AutoIncrementColumn declares a rowid alias. AUTOINCREMENT is only legal on
// an inline INTEGER PRIMARY KEY, so the caller must skip the table-level key.
func (d *SQLiteDialect) AutoIncrementColumn(name, sqlType string) (string, bool) {
	return fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", d.QuoteIdent(name)), true
}

func (d *SQLiteDialect) BooleanLiterals() (string, string) {
	return "1", "0"
}

func (d *SQLiteDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(table))
}
