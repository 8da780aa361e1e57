// Package engine copies row data between two databases in batches.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"
	"db-migrate/internal/typemap"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Migrator struct {
	source Side
	target Side
	logger *zap.Logger
}

func NewMigrator(source, target Side, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{source: source, target: target, logger: logger}
}

// plan is the per-table transfer setup derived from both schemas.
type plan struct {
	cols       []string
	transforms []typemap.Transform
	pagination Pagination
	key        string   // keyset cursor column
	keyIndex   int      // position of key in cols
	orderBy    []string // offset ordering
}

func (m *Migrator) planTable(src, dst *schema.TableSchema) plan {
	var p plan
	for _, sc := range src.Columns {
		tc, ok := dst.Column(sc.Name)
		if !ok {
			continue
		}
		p.cols = append(p.cols, sc.Name)
		p.transforms = append(p.transforms, typemap.GetValueTransformation(
			sc.Type, tc.Type, m.source.Dialect.Kind(), m.target.Dialect.Kind()))
	}

	p.key = keysetColumn(src, m.source.Dialect.Kind())
	p.keyIndex = -1
	for i, c := range p.cols {
		if c == p.key {
			p.keyIndex = i
		}
	}
	if p.key != "" && p.keyIndex >= 0 {
		p.pagination = Keyset
		return p
	}

	p.pagination = Offset
	p.key = ""
	p.orderBy = p.cols
	if len(src.PrimaryKey) > 0 {
		p.orderBy = src.PrimaryKey
	}
	return p
}

// keysetColumn picks a single non-null column with unique, orderable values:
// the primary key, else a full (non-partial) unique index.
func keysetColumn(t *schema.TableSchema, source dialect.Kind) string {
	usable := func(name string) bool {
		c, ok := t.Column(name)
		if !ok || c.Nullable || !typemap.Orderable(c.Type) {
			return false
		}
		// SQLite stores date/time as text in whatever format it was written;
		// a time.Time cursor would be re-encoded and compare differently.
		return source != dialect.SQLite || typemap.FamilyOf(c.Type) != typemap.FamilyTemporal
	}
	if len(t.PrimaryKey) == 1 {
		if pk := t.PrimaryKey[0]; usable(pk) || isRowid(t, pk) {
			return pk
		}
	}
	for _, idx := range t.Indexes {
		if idx.Unique && idx.Partial == "" && len(idx.Columns) == 1 && usable(idx.Columns[0]) {
			return idx.Columns[0]
		}
	}
	for _, c := range t.Constraints {
		if c.Type == schema.ConstraintUnique && usable(c.Expression) {
			return c.Expression
		}
	}
	return ""
}

// isRowid covers SQLite integer keys declared without NOT NULL.
func isRowid(t *schema.TableSchema, name string) bool {
	c, ok := t.Column(name)
	return ok && c.AutoIncrement
}

// MigrateTableData copies every row of src into dst. Batches run strictly in
// order; failures are recorded in the result rather than returned.
func (m *Migrator) MigrateTableData(ctx context.Context, src, dst *schema.TableSchema, opts Options) DataMigrationResult {
	start := time.Now()
	res := DataMigrationResult{TableName: src.Name}
	log := m.logger.With(zap.String("table", src.Name))

	p := m.planTable(src, dst)
	res.Pagination = p.pagination
	if len(p.cols) == 0 {
		res.Errors = append(res.Errors, MigrationError{Table: src.Name, Message: "no columns in common with target table"})
		res.Duration = time.Since(start)
		return res
	}
	if p.pagination == Offset {
		log.Warn("no usable keyset column, falling back to offset pagination (quadratic on large tables)",
			zap.Strings("order_by", p.orderBy))
	}

	batchSize := opts.batchSize()
	first := true
	var lastKey any
	offset := 0

	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, MigrationError{Table: src.Name, Message: "migration cancelled", Err: err})
			break
		}

		var query string
		var args []any
		if p.pagination == Keyset {
			query = m.source.Dialect.KeysetQuery(src.Name, p.key, p.cols, first, batchSize)
			if !first {
				args = []any{lastKey}
			}
		} else {
			query = m.source.Dialect.OffsetQuery(src.Name, p.cols, p.orderBy, batchSize, offset)
		}

		rows, err := m.readBatch(ctx, query, args, len(p.cols))
		if err != nil {
			res.Errors = append(res.Errors, MigrationError{
				Table: src.Name, Message: fmt.Sprintf("failed to read batch %d", batch), Err: err,
			})
			log.Warn("batch read failed", zap.Int("batch", batch), zap.Error(err))
			// a keyset cursor cannot move past a batch it never saw
			if p.pagination == Keyset || opts.ErrorPolicy == Abort {
				break
			}
			offset += batchSize
			continue
		}
		if len(rows) == 0 {
			break
		}

		stop := false
		if p.pagination == Keyset {
			first = false
			lastKey = rows[len(rows)-1][p.keyIndex]
			if lastKey == nil {
				// nothing compares greater than NULL; write this batch and stop
				res.Errors = append(res.Errors, MigrationError{
					Table:   src.Name,
					Message: fmt.Sprintf("NULL value in keyset column %s at batch %d, remaining rows skipped", p.key, batch),
				})
				log.Warn("keyset cursor is NULL", zap.String("column", p.key), zap.Int("batch", batch))
				stop = true
			}
		} else {
			offset += len(rows)
		}

		applyTransforms(rows, p.transforms)

		if err := m.insertBatch(ctx, dst.Name, p.cols, rows); err != nil {
			res.Errors = append(res.Errors, MigrationError{
				Table: src.Name, Message: fmt.Sprintf("failed to write batch %d", batch), Err: err,
			})
			log.Warn("batch write failed", zap.Int("batch", batch), zap.Error(err))
			if opts.ErrorPolicy == Abort {
				break
			}
		} else {
			res.RowsMigrated += int64(len(rows))
			res.Batches++
			log.Debug("batch written", zap.Int("batch", batch), zap.Int("rows", len(rows)))
			if opts.OnProgress != nil {
				opts.OnProgress(newProgress(src.Name, res.RowsMigrated, src.RowCount, time.Since(start)))
			}
		}

		if stop || len(rows) < batchSize {
			break
		}
	}

	res.Duration = time.Since(start)
	log.Info("table migrated",
		zap.Int64("rows", res.RowsMigrated),
		zap.Int("batches", res.Batches),
		zap.String("pagination", string(res.Pagination)),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", res.Duration))
	return res
}

// readBatch loads one page fully and closes the result set before returning.
func (m *Migrator) readBatch(ctx context.Context, query string, args []any, width int) ([][]any, error) {
	rs, err := m.source.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows [][]any
	for rs.Next() {
		row := make([]any, width)
		ptrs := make([]any, width)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

func applyTransforms(rows [][]any, transforms []typemap.Transform) {
	for _, row := range rows {
		for i, fn := range transforms {
			if fn != nil {
				row[i] = fn(row[i])
			}
		}
	}
}

// insertBatch writes rows with one multi-row INSERT, split only when the
// dialect's bind parameter limit would be exceeded. A split batch runs in one
// transaction when the target can begin one, so it lands whole or not at all.
func (m *Migrator) insertBatch(ctx context.Context, table string, cols []string, rows [][]any) error {
	d := m.target.Dialect
	perStmt := d.MaxBindParams() / len(cols)
	if perStmt < 1 {
		perStmt = 1
	}

	conn := m.target.Conn
	var tx *sql.Tx
	if b, ok := conn.(txBeginner); ok && len(rows) > perStmt {
		var err error
		if tx, err = b.BeginTx(ctx, nil); err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()
		conn = tx
	}

	written := 0
	for startRow := 0; startRow < len(rows); startRow += perStmt {
		end := min(startRow+perStmt, len(rows))
		chunk := rows[startRow:end]

		args := make([]any, 0, len(chunk)*len(cols))
		for _, row := range chunk {
			args = append(args, row...)
		}
		if _, err := conn.ExecContext(ctx, d.InsertQuery(table, cols, len(chunk)), args...); err != nil {
			if tx == nil && written > 0 {
				return fmt.Errorf("%d of %d rows already written: %w", written, len(rows), err)
			}
			return err
		}
		written += len(chunk)
	}

	if tx != nil {
		return tx.Commit()
	}
	return nil
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// MigrateAllTablesData migrates the tables present on both sides, in the
// order of sourceTables. In parallel mode the list is cut into chunks of
// ParallelWorkers tables; the tables of one chunk run concurrently and the
// chunks run one after another.
func (m *Migrator) MigrateAllTablesData(ctx context.Context, sourceTables, targetTables []*schema.TableSchema, opts Options) []DataMigrationResult {
	targets := schema.ByName(targetTables)

	type pair struct{ src, dst *schema.TableSchema }
	var pairs []pair
	for _, st := range sourceTables {
		if tt, ok := targets[st.Name]; ok {
			pairs = append(pairs, pair{st, tt})
		} else {
			m.logger.Debug("table missing in target, skipping data", zap.String("table", st.Name))
		}
	}

	results := make([]DataMigrationResult, len(pairs))

	if !opts.Parallel || opts.ParallelWorkers <= 1 || len(pairs) <= 1 {
		for i, p := range pairs {
			results[i] = m.MigrateTableData(ctx, p.src, p.dst, opts)
		}
		return results
	}

	chunk := min(opts.ParallelWorkers, len(pairs))
	for lo := 0; lo < len(pairs); lo += chunk {
		hi := min(lo+chunk, len(pairs))
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				results[i] = m.MigrateTableData(ctx, pairs[i].src, pairs[i].dst, opts)
				return nil
			})
		}
		_ = g.Wait()
	}
	return results
}
