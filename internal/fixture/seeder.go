package fixture

import (
	"context"
	"fmt"
	"strings"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"
	"db-migrate/internal/schema"

	"go.uber.org/zap"
)

type SeedResult struct {
	TableName string
	Target    int
	Actual    int64 // rows added, by COUNT(*) before and after
	Status    string
	ErrorMsg  string
}

// Seeder inserts generated rows. Foreign key columns draw from the primary
// keys of referenced tables, so tables are seeded parents first.
type Seeder struct {
	conn    database.Conn
	dialect dialect.Dialect
	gen     *Generator
	logger  *zap.Logger
	fkPool  map[string][]any
}

func NewSeeder(conn database.Conn, d dialect.Dialect, seed int64, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		conn:    conn,
		dialect: d,
		gen:     NewGenerator(seed),
		logger:  logger,
		fkPool:  make(map[string][]any),
	}
}

// Seed adds count rows to every table, in dependency order. onRow is called
// after every inserted row.
func (s *Seeder) Seed(ctx context.Context, tables []*schema.TableSchema, count int, onRow func(table string)) ([]SeedResult, error) {
	var results []SeedResult
	for _, t := range schema.SortTablesByDependencies(tables) {
		res, err := s.seedTable(ctx, t, count, onRow)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if err := s.updateFKPool(ctx, t); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (s *Seeder) seedTable(ctx context.Context, t *schema.TableSchema, count int, onRow func(string)) (SeedResult, error) {
	log := s.logger.With(zap.String("table", t.Name))
	res := SeedResult{TableName: t.Name, Target: count, Status: "OK"}

	initial, err := schema.CountRows(ctx, s.conn, s.dialect, t.Name)
	if err != nil {
		return res, err
	}

	var cols []schema.ColumnSchema
	var names []string
	for _, c := range t.Columns {
		if !c.AutoIncrement {
			cols = append(cols, c)
			names = append(names, c.Name)
		}
	}
	if len(cols) == 0 {
		res.Status = "SKIPPED"
		res.ErrorMsg = "no insertable columns"
		return res, nil
	}

	query := s.dialect.InsertQuery(t.Name, names, 1)
	usedKeys := make(map[string]bool)
	usedUnique := make(map[string]map[string]bool)
	for _, c := range cols {
		if c.Unique || c.PrimaryKey {
			usedUnique[c.Name] = make(map[string]bool)
		}
	}

	inserted, attempts := 0, 0
	for inserted < count && attempts < count*10 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		attempts++

		values, ok := s.row(t, cols, attempts)
		if !ok {
			res.ErrorMsg = "referenced table has no rows"
			break
		}

		if len(t.PrimaryKey) > 1 {
			key := compositeKey(t, cols, values)
			if usedKeys[key] {
				continue
			}
			usedKeys[key] = true
		}

		dup := false
		for i, c := range cols {
			if seen, ok := usedUnique[c.Name]; ok && seen[fmt.Sprint(values[i])] {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		for i, c := range cols {
			if seen, ok := usedUnique[c.Name]; ok {
				seen[fmt.Sprint(values[i])] = true
			}
		}

		if _, err := s.conn.ExecContext(ctx, query, values...); err != nil {
			if attempts <= 3 {
				log.Debug("insert failed", zap.Int("attempt", attempts), zap.Error(err))
			}
			continue
		}
		inserted++
		if onRow != nil {
			onRow(t.Name)
		}
	}

	final, err := schema.CountRows(ctx, s.conn, s.dialect, t.Name)
	if err != nil {
		return res, err
	}
	res.Actual = final - initial
	if res.Actual < int64(count) {
		res.Status = "MISSING DATA"
		if res.ErrorMsg == "" {
			res.ErrorMsg = fmt.Sprintf("only inserted %d out of %d", res.Actual, count)
		}
	}
	log.Info("table seeded", zap.Int64("rows", res.Actual), zap.String("status", res.Status))
	return res, nil
}

// row builds one row; index makes unique values and FK choices spread out.
func (s *Seeder) row(t *schema.TableSchema, cols []schema.ColumnSchema, index int) ([]any, bool) {
	values := make([]any, len(cols))
	for i, c := range cols {
		if fk, ok := foreignKeyFor(t, c.Name); ok {
			pool := s.fkPool[fk.ReferencedTable]
			switch {
			case len(pool) > 0:
				values[i] = pool[index%len(pool)]
			case c.Nullable || fk.ReferencedTable == t.Name:
				values[i] = nil
			default:
				return nil, false
			}
			continue
		}

		v := s.gen.Value(c)
		if c.Unique || (c.PrimaryKey && len(t.PrimaryKey) == 1) {
			v = uniquify(v, index)
		}
		values[i] = v
	}
	return values, true
}

func foreignKeyFor(t *schema.TableSchema, column string) (schema.ForeignKeySchema, bool) {
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 1 && fk.Columns[0] == column {
			return fk, true
		}
	}
	return schema.ForeignKeySchema{}, false
}

// uniquify folds index into generated values of single-column keys.
func uniquify(v any, index int) any {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%s-%d", x, index)
	case int:
		return index
	case float64:
		return float64(index) + x/100
	}
	return v
}

func compositeKey(t *schema.TableSchema, cols []schema.ColumnSchema, values []any) string {
	var parts []string
	for i, c := range cols {
		for _, pk := range t.PrimaryKey {
			if c.Name == pk {
				parts = append(parts, fmt.Sprint(values[i]))
			}
		}
	}
	return strings.Join(parts, "|")
}

// updateFKPool collects the primary key values of t for its children.
func (s *Seeder) updateFKPool(ctx context.Context, t *schema.TableSchema) error {
	if len(t.PrimaryKey) != 1 {
		return nil
	}
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s",
		s.dialect.QuoteIdent(t.PrimaryKey[0]), s.dialect.QuoteIdent(t.Name)))
	if err != nil {
		return fmt.Errorf("failed to collect keys of %s: %w", t.Name, err)
	}
	defer rows.Close()

	var pool []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan key of %s: %w", t.Name, err)
		}
		pool = append(pool, id)
	}
	s.fkPool[t.Name] = pool
	return rows.Err()
}
