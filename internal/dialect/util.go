package dialect

import (
	"fmt"
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// offset shifts the index handed to placeholderFunc so that several groups can share
// one numbering sequence ($1..$n for the first row, $n+1.. for the next).
func GeneratePlaceholders(count, offset int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(offset + i)
	}
	return strings.Join(placeholders, ", ")
}

// QuoteDouble quotes an identifier with ANSI double quotes, doubling embedded quotes.
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteList quotes every name and joins them with ", ".
func QuoteList(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

func buildInsertQuery(d Dialect, table string, cols []string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.QuoteIdent(table), QuoteList(cols, d.QuoteIdent))
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(GeneratePlaceholders(len(cols), r*len(cols), d.Placeholder))
		b.WriteString(")")
	}
	return b.String()
}

func buildKeysetQuery(d Dialect, table, key string, cols []string, first bool, limit int) string {
	qk := d.QuoteIdent(key)
	where := ""
	if !first {
		where = fmt.Sprintf(" WHERE %s > %s", qk, d.Placeholder(0))
	}
	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC LIMIT %d",
		QuoteList(cols, d.QuoteIdent), d.QuoteIdent(table), where, qk, limit)
}

func buildOffsetQuery(d Dialect, table string, cols, orderBy []string, limit, offset int) string {
	order := ""
	if len(orderBy) > 0 {
		order = " ORDER BY " + QuoteList(orderBy, d.QuoteIdent)
	}
	return fmt.Sprintf("SELECT %s FROM %s%s LIMIT %d OFFSET %d",
		QuoteList(cols, d.QuoteIdent), d.QuoteIdent(table), order, limit, offset)
}
