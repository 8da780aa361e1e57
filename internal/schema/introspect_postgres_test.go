package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripOuterParens(t *testing.T) {
	tests := []struct{ in, expected string }{
		{"(age >= 0)", "age >= 0"},
		{"((age >= 0))", "age >= 0"},
		{" (title IS NOT NULL) ", "title IS NOT NULL"},
		{"(a > 0) AND (b > 0)", "(a > 0) AND (b > 0)"},
		{"(name <> ')')", "name <> ')'"},
		{"lower(name) = 'x'", "lower(name) = 'x'"},
		{"", ""},
		{"((status)::text = 'on'::text)", "(status)::text = 'on'::text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripOuterParens(tt.in), tt.in)
	}
}

func TestPgReferentialAction(t *testing.T) {
	tests := map[string]string{
		"r": "RESTRICT",
		"c": "CASCADE",
		"n": "SET NULL",
		"d": "SET DEFAULT",
		"a": "",
	}
	for code, expected := range tests {
		assert.Equal(t, expected, pgReferentialAction(code), code)
	}
}
