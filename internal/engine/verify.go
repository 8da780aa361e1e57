package engine

import (
	"context"
	"fmt"

	"db-migrate/internal/schema"
)

type VerificationResult struct {
	Table       string
	SourceCount int64
	TargetCount int64
	Match       bool
}

func (v VerificationResult) String() string {
	if v.Match {
		return fmt.Sprintf("%s: OK (%d rows)", v.Table, v.SourceCount)
	}
	return fmt.Sprintf("%s: MISMATCH source=%d target=%d", v.Table, v.SourceCount, v.TargetCount)
}

// VerifyDataMigration compares COUNT(*) of table on both sides. A mismatch
// is reported, never repaired.
func (m *Migrator) VerifyDataMigration(ctx context.Context, table string) (VerificationResult, error) {
	res := VerificationResult{Table: table}

	var err error
	if res.SourceCount, err = schema.CountRows(ctx, m.source.Conn, m.source.Dialect, table); err != nil {
		return res, fmt.Errorf("verify source: %w", err)
	}
	if res.TargetCount, err = schema.CountRows(ctx, m.target.Conn, m.target.Dialect, table); err != nil {
		return res, fmt.Errorf("verify target: %w", err)
	}
	res.Match = res.SourceCount == res.TargetCount
	return res, nil
}
