package dialect

import (
	"fmt"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Kind() Kind {
	return Postgres
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return QuoteDouble(name)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

// MaxBindParams is the protocol limit: the Bind message carries a uint16 parameter count.
func (d *PostgresDialect) MaxBindParams() int {
	return 65535
}

func (d *PostgresDialect) KeysetQuery(table, key string, cols []string, first bool, limit int) string {
	return buildKeysetQuery(d, table, key, cols, first, limit)
}

func (d *PostgresDialect) OffsetQuery(table string, cols, orderBy []string, limit, offset int) string {
	return buildOffsetQuery(d, table, cols, orderBy, limit, offset)
}

func (d *PostgresDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *PostgresDialect) InsertQuery(table string, cols []string, rows int) string {
	return buildInsertQuery(d, table, cols, rows)
}

// AutoIncrementColumn uses an identity column. BY DEFAULT keeps explicit ids
// from the source insertable; the table-level PRIMARY KEY is emitted separately.
func (d *PostgresDialect) AutoIncrementColumn(name, sqlType string) (string, bool) {
	return fmt.Sprintf("%s %s GENERATED BY DEFAULT AS IDENTITY", d.QuoteIdent(name), sqlType), false
}

func (d *PostgresDialect) BooleanLiterals() (string, string) {
	return "TRUE", "FALSE"
}

func (d *PostgresDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", d.QuoteIdent(table))
}
