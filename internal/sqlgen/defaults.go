package sqlgen

import (
	"strconv"
	"strings"

	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
	"db-migrate/internal/typemap"
)

// translateDefault rewrites a column default for the target dialect. Only
// literals and the current date/time keywords are carried over; sequence
// defaults and other expressions are dropped.
func translateDefault(col schema.ColumnSchema, from dialect.Kind, d dialect.Dialect) (string, bool) {
	if col.DefaultValue == nil || col.AutoIncrement {
		return "", false
	}
	v := strings.TrimSpace(*col.DefaultValue)
	if strings.Contains(strings.ToLower(v), "nextval(") {
		return "", false
	}
	v = stripCasts(v)
	for len(v) >= 2 && v[0] == '(' && v[len(v)-1] == ')' {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	if v == "" || strings.EqualFold(v, "NULL") {
		return "", false
	}

	upper := strings.ToUpper(v)
	switch upper {
	case "CURRENT_TIMESTAMP", "NOW()", "DATETIME('NOW')", "LOCALTIMESTAMP":
		return "CURRENT_TIMESTAMP", true
	case "CURRENT_DATE", "DATE('NOW')":
		return "CURRENT_DATE", true
	case "CURRENT_TIME", "TIME('NOW')":
		return "CURRENT_TIME", true
	}

	if typemap.FamilyOf(col.Type) == typemap.FamilyBoolean || typemap.FamilyOf(typemap.MapType(col.Type, from, d.Kind())) == typemap.FamilyBoolean {
		t, f := d.BooleanLiterals()
		switch upper {
		case "TRUE", "'T'", "'TRUE'", "1", "'1'":
			return t, true
		case "FALSE", "'F'", "'FALSE'", "0", "'0'":
			return f, true
		}
	}

	if isStringLiteral(v) {
		return v, true
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v, true
	}
	if upper == "TRUE" || upper == "FALSE" {
		t, f := d.BooleanLiterals()
		if upper == "TRUE" {
			return t, true
		}
		return f, true
	}
	return "", false
}

// stripCasts removes trailing PostgreSQL casts such as ::text or
// ::character varying[].
func stripCasts(v string) string {
	for {
		i := strings.LastIndex(v, "::")
		if i <= 0 || strings.ContainsAny(v[i:], "'()") {
			return v
		}
		v = strings.TrimSpace(v[:i])
	}
}

func isStringLiteral(v string) bool {
	if len(v) < 2 || v[0] != '\'' || v[len(v)-1] != '\'' {
		return false
	}
	inner := v[1 : len(v)-1]
	return !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'")
}
