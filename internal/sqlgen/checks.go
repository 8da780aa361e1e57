package sqlgen

import (
	"regexp"
	"strings"

	"db-migrate/internal/dialect"
)

var (
	pgCast     = regexp.MustCompile(`::(?:character varying|double precision|timestamp with(?:out)? time zone|time with(?:out)? time zone|bit varying|"?[A-Za-z_][A-Za-z0-9_]*"?)(?:\(\d+(?:\s*,\s*\d+)?\))?(?:\[\])*`)
	pgAnyArray = regexp.MustCompile(`(?i)(=|<>)\s*(ANY|ALL)\s*(\(+)\s*ARRAY\[([^\]]*)\]\s*(\)+)`)
	pgOnly     = regexp.MustCompile(`(?i)::|ARRAY\[|\bANY\b|\bALL\b|~|@>|<@|\bILIKE\b|\bSIMILAR\s+TO\b|\$\d`)
	sqliteOnly = regexp.MustCompile(`(?i)\b(?:typeof|julianday|strftime|datetime|date|time|unixepoch|instr|printf|ifnull|iif|glob)\s*\(|\bGLOB\b|\bREGEXP\b`)
)

// TranslateCheck rewrites a CHECK expression read from the from dialect for
// d. PostgreSQL casts are dropped and "x = ANY (ARRAY[...])" becomes
// "x IN (...)". It reports false when the expression still uses syntax the
// target does not understand; such a check is left out of generated DDL.
func TranslateCheck(expr string, from dialect.Kind, d dialect.Dialect) (string, bool) {
	if from == d.Kind() {
		return expr, true
	}

	switch from {
	case dialect.Postgres:
		out := outsideLiterals(expr, func(code string) string {
			code = pgCast.ReplaceAllString(code, "")
			code = strings.ReplaceAll(code, "!~~", "NOT LIKE")
			code = strings.ReplaceAll(code, "~~*", "\x00")
			return strings.ReplaceAll(code, "~~", "LIKE")
		})
		out = rewriteAnyArray(out)
		if matchesOutsideLiterals(pgOnly, out) || strings.Contains(out, "\x00") {
			return "", false
		}
		return stripRedundantParens(out), true

	case dialect.SQLite:
		if matchesOutsideLiterals(sqliteOnly, expr) {
			return "", false
		}
		return expr, true
	}
	return "", false
}

// rewriteAnyArray turns "= ANY ((ARRAY[a, b]))" into "IN (a, b)" and
// "<> ALL (ARRAY[a, b])" into "NOT IN (a, b)".
func rewriteAnyArray(expr string) string {
	return pgAnyArray.ReplaceAllStringFunc(expr, func(m string) string {
		g := pgAnyArray.FindStringSubmatch(m)
		op, quant, open, list, closing := g[1], strings.ToUpper(g[2]), g[3], g[4], g[5]
		if len(closing) < len(open) {
			return m
		}
		rest := closing[len(open):]
		switch {
		case op == "=" && quant == "ANY":
			return "IN (" + strings.TrimSpace(list) + ")" + rest
		case op == "<>" && quant == "ALL":
			return "NOT IN (" + strings.TrimSpace(list) + ")" + rest
		}
		return m
	})
}

// stripRedundantParens unwraps "(status) IN" style identifiers left behind
// once a cast is removed.
var parenIdent = regexp.MustCompile(`\(("?[A-Za-z_][A-Za-z0-9_]*"?)\)`)

func stripRedundantParens(expr string) string {
	return outsideLiterals(expr, func(code string) string {
		var b strings.Builder
		last := 0
		for _, m := range parenIdent.FindAllStringSubmatchIndex(code, -1) {
			// keep the parens of a call such as lower(name)
			if m[0] > 0 && isIdentChar(code[m[0]-1]) {
				continue
			}
			b.WriteString(code[last:m[0]])
			b.WriteString(code[m[2]:m[3]])
			last = m[1]
		}
		b.WriteString(code[last:])
		return b.String()
	})
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// outsideLiterals applies fn to the parts of expr that are not inside
// single-quoted string literals.
func outsideLiterals(expr string, fn func(string) string) string {
	var b strings.Builder
	var code strings.Builder
	inQuote := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c == '\'' {
			if !inQuote {
				b.WriteString(fn(code.String()))
				code.Reset()
			}
			inQuote = !inQuote
			b.WriteByte(c)
			continue
		}
		if inQuote {
			b.WriteByte(c)
		} else {
			code.WriteByte(c)
		}
	}
	b.WriteString(fn(code.String()))
	return b.String()
}

func matchesOutsideLiterals(re *regexp.Regexp, expr string) bool {
	found := false
	outsideLiterals(expr, func(code string) string {
		if re.MatchString(code) {
			found = true
		}
		return code
	})
	return found
}
