package sqlgen

import (
	"context"
	"fmt"

	"db-migrate/internal/database"
)

type ApplyOptions struct {
	// Force keeps executing after a failed statement.
	Force bool
}

type StatementError struct {
	SQL string
	Err error
}

func (e StatementError) Error() string {
	return fmt.Sprintf("%s: %v", e.SQL, e.Err)
}

func (e StatementError) Unwrap() error { return e.Err }

type ApplyResult struct {
	Success           bool
	AppliedStatements []string
	Errors            []StatementError
}

// ApplySchemaSynchronization executes the non-comment statements in order.
// Without Force it stops at the first failure. Statements that ran before a
// failure are not rolled back.
func ApplySchemaSynchronization(ctx context.Context, conn database.Conn, statements []string, opts ApplyOptions) ApplyResult {
	var res ApplyResult
	for _, stmt := range statements {
		if IsComment(stmt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, StatementError{SQL: stmt, Err: err})
			break
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			res.Errors = append(res.Errors, StatementError{SQL: stmt, Err: err})
			if !opts.Force {
				break
			}
			continue
		}
		res.AppliedStatements = append(res.AppliedStatements, stmt)
	}
	res.Success = len(res.Errors) == 0
	return res
}
