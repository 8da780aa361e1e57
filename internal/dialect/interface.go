package dialect

// Kind names one of the supported database engines.
type Kind string

const (
	SQLite   Kind = "sqlite"
	Postgres Kind = "postgres"
)

// Dialect abstracts engine-specific SQL. There are exactly two
// implementations, chosen once when a migration is configured.
type Dialect interface {
	Kind() Kind

	// Identifiers & Parameters
	QuoteIdent(name string) string
	Placeholder(index int) string // Returns ?, $1, etc.
	MaxBindParams() int

	// Batch Reads
	KeysetQuery(table, key string, cols []string, first bool, limit int) string
	OffsetQuery(table string, cols, orderBy []string, limit, offset int) string
	CountQuery(table string) string

	// Writes
	InsertQuery(table string, cols []string, rows int) string

	// DDL
	AutoIncrementColumn(name, sqlType string) (def string, inlinePK bool)
	BooleanLiterals() (t, f string)
	DropTableQuery(table string) string
}
