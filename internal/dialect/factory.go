package dialect

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownDialect = errors.New("unknown dialect")

// ParseKind accepts the spellings used in config files and DSNs.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

// GetDialect returns the Dialect implementation for kind.
func GetDialect(kind Kind) (Dialect, error) {
	switch kind {
	case SQLite:
		return &SQLiteDialect{}, nil
	case Postgres:
		return &PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, string(kind))
	}
}

// MustGetDialect is GetDialect for kinds already validated by ParseKind.
func MustGetDialect(kind Kind) Dialect {
	d, err := GetDialect(kind)
	if err != nil {
		panic(err)
	}
	return d
}

// Ensure interface implementation
var _ Dialect = (*SQLiteDialect)(nil)
var _ Dialect = (*PostgresDialect)(nil)
