// Package typemap translates column types between SQLite and PostgreSQL and
// supplies per-value coercions for the data migrator.
package typemap

import (
	"strconv"
	"strings"

	"db-migrate/internal/dialect"
)

// Fallback is the widest safe type on both engines.
const Fallback = "TEXT"

// Keys are canonical base names, see canonicalBase.
var sqliteToPostgres = map[string]string{
	"INTEGER":          "INTEGER",
	"TINYINT":          "SMALLINT",
	"SMALLINT":         "SMALLINT",
	"MEDIUMINT":        "INTEGER",
	"BIGINT":           "BIGINT",
	"UNSIGNED BIG INT": "BIGINT",
	"REAL":             "DOUBLE PRECISION",
	"DOUBLE PRECISION": "DOUBLE PRECISION",
	"DOUBLE":           "DOUBLE PRECISION",
	"FLOAT":            "DOUBLE PRECISION",
	"NUMERIC":          "NUMERIC",
	"TEXT":             "TEXT",
	"CLOB":             "TEXT",
	"VARCHAR":          "VARCHAR",
	"NVARCHAR":         "VARCHAR",
	"CHAR":             "CHAR",
	"NCHAR":            "CHAR",
	"BLOB":             "BYTEA",
	"BOOLEAN":          "BOOLEAN",
	"DATE":             "DATE",
	"DATETIME":         "TIMESTAMP",
	"TIMESTAMP":        "TIMESTAMP",
	"TIME":             "TIME",
	"JSON":             "JSONB",
	"UUID":             "UUID",
}

var postgresToSQLite = map[string]string{
	"SMALLINT":                 "INTEGER",
	"INTEGER":                  "INTEGER",
	"BIGINT":                   "INTEGER",
	"SERIAL":                   "INTEGER",
	"BIGSERIAL":                "INTEGER",
	"SMALLSERIAL":              "INTEGER",
	"REAL":                     "REAL",
	"DOUBLE PRECISION":         "REAL",
	"NUMERIC":                  "NUMERIC",
	"MONEY":                    "NUMERIC",
	"TEXT":                     "TEXT",
	"VARCHAR":                  "TEXT",
	"CHAR":                     "TEXT",
	"CITEXT":                   "TEXT",
	"NAME":                     "TEXT",
	"UUID":                     "TEXT",
	"BOOLEAN":                  "INTEGER",
	"BYTEA":                    "BLOB",
	"DATE":                     "TEXT",
	"TIMESTAMP":                "TEXT",
	"TIMESTAMP WITH TIME ZONE": "TEXT",
	"TIME":                     "TEXT",
	"TIME WITH TIME ZONE":      "TEXT",
	"INTERVAL":                 "TEXT",
	"JSON":                     "TEXT",
	"JSONB":                    "TEXT",
	"XML":                      "TEXT",
	"INET":                     "TEXT",
	"CIDR":                     "TEXT",
	"MACADDR":                  "TEXT",
}

// aliases folds spellings of one type onto a single canonical name.
var aliases = map[string]string{
	"INT":                         "INTEGER",
	"INT4":                        "INTEGER",
	"INT2":                        "SMALLINT",
	"INT8":                        "BIGINT",
	"FLOAT4":                      "REAL",
	"FLOAT8":                      "DOUBLE PRECISION",
	"DECIMAL":                     "NUMERIC",
	"CHARACTER VARYING":           "VARCHAR",
	"VARYING CHARACTER":           "VARCHAR",
	"NATIVE CHARACTER":            "NCHAR",
	"CHARACTER":                   "CHAR",
	"BPCHAR":                      "CHAR",
	"BOOL":                        "BOOLEAN",
	"TIMESTAMP WITHOUT TIME ZONE": "TIMESTAMP",
	"TIMESTAMPTZ":                 "TIMESTAMP WITH TIME ZONE",
	"TIME WITHOUT TIME ZONE":      "TIME",
	"TIMETZ":                      "TIME WITH TIME ZONE",
	"SERIAL4":                     "SERIAL",
	"SERIAL8":                     "BIGSERIAL",
	"SERIAL2":                     "SMALLSERIAL",
}

// keepsArgs lists target types whose length/precision is carried over.
var keepsArgs = map[dialect.Kind]map[string]bool{
	dialect.Postgres: {"VARCHAR": true, "CHAR": true, "NUMERIC": true},
	dialect.SQLite:   {"NUMERIC": true},
}

// parsed is a type name split into its parts.
type parsed struct {
	base  string // canonical, upper case
	args  string // "(255)", "(10,2)" or ""
	array bool
}

// parse normalizes a type name: case and whitespace are folded, the
// parenthesized argument list is lifted out wherever it appears (PostgreSQL
// writes "timestamp(3) without time zone"), and array markers are removed.
func parse(sqlType string) parsed {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	var p parsed

	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSpace(strings.TrimSuffix(t, "[]"))
		p.array = true
	}
	if strings.HasPrefix(t, "_") {
		t = t[1:]
		p.array = true
	}

	if open := strings.IndexByte(t, '('); open >= 0 {
		if end := strings.IndexByte(t[open:], ')'); end >= 0 {
			p.args = strings.ReplaceAll(t[open:open+end+1], " ", "")
			t = t[:open] + " " + t[open+end+1:]
		}
	}

	p.base = canonicalBase(strings.Join(strings.Fields(t), " "))
	return p
}

func canonicalBase(base string) string {
	if c, ok := aliases[base]; ok {
		return c
	}
	return base
}

// BaseType returns the canonical base name of sqlType: upper case, without
// length/precision or array markers, with aliases folded.
func BaseType(sqlType string) string {
	return parse(sqlType).base
}

// Length returns the first length/precision argument of sqlType, or 0.
func Length(sqlType string) int {
	args := strings.Trim(parse(sqlType).args, "()")
	if i := strings.IndexByte(args, ','); i >= 0 {
		args = args[:i]
	}
	n, err := strconv.Atoi(args)
	if err != nil {
		return 0
	}
	return n
}

// MapType translates sourceType from one dialect to another. It is total:
// unknown types map to TEXT and the result is never empty.
func MapType(sourceType string, from, to dialect.Kind) string {
	if from == to {
		if t := strings.TrimSpace(sourceType); t != "" {
			return t
		}
		return Fallback
	}

	p := parse(sourceType)
	if p.array {
		if to == dialect.SQLite {
			return Fallback
		}
		return mapBase(p, to) + "[]"
	}
	return mapBase(p, to)
}

func mapBase(p parsed, to dialect.Kind) string {
	table := postgresToSQLite
	if to == dialect.Postgres {
		table = sqliteToPostgres
	}
	mapped, ok := table[p.base]
	if !ok {
		return Fallback
	}
	if p.args != "" && keepsArgs[to][mapped] {
		return mapped + p.args
	}
	return mapped
}

// AreTypesCompatible reports whether a column of sourceType can be stored in
// an existing column of targetType without a schema change. Within one
// dialect the names must match case-insensitively; across dialects the
// mapped base type must equal the target's base type.
func AreTypesCompatible(sourceType, targetType string, from, to dialect.Kind) bool {
	if from == to {
		return strings.EqualFold(
			strings.Join(strings.Fields(sourceType), " "),
			strings.Join(strings.Fields(targetType), " "))
	}
	mapped := parse(MapType(sourceType, from, to))
	target := parse(targetType)
	return mapped.base == target.base && mapped.array == target.array
}

// Family groups types by value representation.
type Family int

const (
	FamilyOther Family = iota
	FamilyInteger
	FamilyFloat
	FamilyNumeric
	FamilyText
	FamilyBoolean
	FamilyBinary
	FamilyTemporal
	FamilyJSON
	FamilyUUID
	FamilyArray
)

var families = map[string]Family{
	"INTEGER": FamilyInteger, "SMALLINT": FamilyInteger, "BIGINT": FamilyInteger, "TINYINT": FamilyInteger,
	"MEDIUMINT": FamilyInteger, "UNSIGNED BIG INT": FamilyInteger,
	"SERIAL": FamilyInteger, "BIGSERIAL": FamilyInteger, "SMALLSERIAL": FamilyInteger,

	"REAL": FamilyFloat, "DOUBLE PRECISION": FamilyFloat, "DOUBLE": FamilyFloat, "FLOAT": FamilyFloat,

	"NUMERIC": FamilyNumeric, "MONEY": FamilyNumeric,

	"TEXT": FamilyText, "VARCHAR": FamilyText, "CHAR": FamilyText, "NVARCHAR": FamilyText, "NCHAR": FamilyText,
	"CLOB": FamilyText, "CITEXT": FamilyText, "NAME": FamilyText,

	"BOOLEAN": FamilyBoolean,

	"BLOB": FamilyBinary, "BYTEA": FamilyBinary,

	"DATE": FamilyTemporal, "DATETIME": FamilyTemporal, "TIMESTAMP": FamilyTemporal,
	"TIMESTAMP WITH TIME ZONE": FamilyTemporal, "TIME": FamilyTemporal, "TIME WITH TIME ZONE": FamilyTemporal,

	"JSON": FamilyJSON, "JSONB": FamilyJSON,

	"UUID": FamilyUUID,
}

// FamilyOf classifies sqlType.
func FamilyOf(sqlType string) Family {
	p := parse(sqlType)
	if p.array {
		return FamilyArray
	}
	return families[p.base]
}

// Orderable reports whether values of sqlType have a stable total order
// usable as a pagination cursor.
func Orderable(sqlType string) bool {
	switch FamilyOf(sqlType) {
	case FamilyInteger, FamilyNumeric, FamilyText, FamilyTemporal, FamilyUUID:
		return true
	}
	return false
}
