// Package orchestrator drives a full migration: introspect both sides,
// reconcile the target schema, copy data and verify row counts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"db-migrate/internal/database"
	"db-migrate/internal/diff"
	"db-migrate/internal/dialect"
	"db-migrate/internal/engine"
	"db-migrate/internal/schema"
	"db-migrate/internal/sqlgen"

	"go.uber.org/zap"
)

type Endpoint struct {
	Dialect dialect.Kind
	Conn    database.Conn
}

type Options struct {
	IncludeTables   []string
	ExcludeTables   []string
	DropTables      bool
	DataOnly        bool
	SchemaOnly      bool
	BatchSize       int
	Parallel        bool
	ParallelWorkers int
	ErrorPolicy     engine.ErrorPolicy
	OnProgress      engine.ProgressFunc
}

type Config struct {
	Source  Endpoint
	Target  Endpoint
	Options Options
}

type Summary struct {
	SchemaChanges      int // tables created or dropped
	DataChanges        int // tables that received rows
	IndexesCreated     int
	ConstraintsApplied int
}

type Result struct {
	Success         bool
	Duration        time.Duration
	TablesProcessed int
	RowsMigrated    int64
	Errors          []engine.MigrationError
	Warnings        []string
	Summary         Summary
	Tables          []engine.DataMigrationResult
}

func (r *Result) fatal(msg string, err error) {
	r.Errors = append(r.Errors, engine.MigrationError{Message: msg, Err: err, Fatal: true})
}

func (r *Result) hasFatal() bool {
	for _, e := range r.Errors {
		if e.Fatal {
			return true
		}
	}
	return false
}

type Orchestrator struct {
	cfg      Config
	source   dialect.Dialect
	target   dialect.Dialect
	lock     *Lock
	logger   *zap.Logger
	migrator *engine.Migrator
}

// New validates cfg. A nil lock gets a private one; pass a shared *Lock to
// keep concurrent runs against the same target apart.
func New(cfg Config, lock *Lock, logger *zap.Logger) (*Orchestrator, error) {
	src, err := dialect.GetDialect(cfg.Source.Dialect)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dst, err := dialect.GetDialect(cfg.Target.Dialect)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if cfg.Source.Conn == nil || cfg.Target.Conn == nil {
		return nil, errors.New("source and target connections are required")
	}
	if cfg.Options.DataOnly && cfg.Options.SchemaOnly {
		return nil, errors.New("data-only and schema-only are mutually exclusive")
	}
	if lock == nil {
		lock = NewLock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		cfg:    cfg,
		source: src,
		target: dst,
		lock:   lock,
		logger: logger,
		migrator: engine.NewMigrator(
			engine.Side{Conn: cfg.Source.Conn, Dialect: src},
			engine.Side{Conn: cfg.Target.Conn, Dialect: dst},
			logger),
	}, nil
}

func (o *Orchestrator) engineOptions() engine.Options {
	opts := o.cfg.Options
	return engine.Options{
		BatchSize:       opts.BatchSize,
		Parallel:        opts.Parallel,
		ParallelWorkers: opts.ParallelWorkers,
		ErrorPolicy:     opts.ErrorPolicy,
		OnProgress:      opts.OnProgress,
	}
}

func (o *Orchestrator) introspect(ctx context.Context, conn database.Conn, d dialect.Dialect) ([]*schema.TableSchema, error) {
	tables, err := schema.NewIntrospector(conn, d).Introspect(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Filter(tables, o.cfg.Options.IncludeTables, o.cfg.Options.ExcludeTables), nil
}

// introspectBoth returns the filtered schemas, source tables in dependency
// order so generated CREATE statements reference earlier tables only,
// cycles aside.
func (o *Orchestrator) introspectBoth(ctx context.Context) (src, dst []*schema.TableSchema, err error) {
	if src, err = o.introspect(ctx, o.cfg.Source.Conn, o.source); err != nil {
		return nil, nil, fmt.Errorf("failed to introspect source: %w", err)
	}
	src = schema.SortTablesByDependencies(src)
	if dst, err = o.introspect(ctx, o.cfg.Target.Conn, o.target); err != nil {
		return nil, nil, fmt.Errorf("failed to introspect target: %w", err)
	}
	return src, dst, nil
}

// Migrate runs the whole pipeline. It never returns an error: fatal problems
// are recorded in Result.Errors and Success is false.
func (o *Orchestrator) Migrate(ctx context.Context) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("migration panicked", zap.Any("panic", r))
			res.fatal("unexpected failure", fmt.Errorf("panic: %v", r))
		}
		res.Duration = time.Since(start)
		res.Success = !res.hasFatal()
	}()

	owner, err := o.lock.TryAcquire()
	if err != nil {
		res.fatal("cannot start migration", err)
		return res
	}
	defer o.lock.Release(owner)

	opts := o.cfg.Options
	o.logger.Info("migration started",
		zap.String("source", string(o.source.Kind())),
		zap.String("target", string(o.target.Kind())),
		zap.Bool("data_only", opts.DataOnly),
		zap.Bool("schema_only", opts.SchemaOnly))

	src, dst, err := o.introspectBoth(ctx)
	if err != nil {
		res.fatal("introspection failed", err)
		return res
	}
	res.TablesProcessed = len(src)

	if !opts.DataOnly {
		if !o.applySchema(ctx, src, dst, &res) {
			return res
		}
	}

	if !opts.SchemaOnly {
		// the schema phase may have changed the target
		if dst, err = o.introspect(ctx, o.cfg.Target.Conn, o.target); err != nil {
			res.fatal("failed to re-introspect target", err)
			return res
		}
		o.migrateData(ctx, src, dst, &res)
	}

	o.logger.Info("migration finished",
		zap.Int("tables", res.TablesProcessed),
		zap.Int64("rows", res.RowsMigrated),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("duration", time.Since(start)))
	return res
}

// applySchema drops (optionally) and creates target tables. It reports
// false when the migration cannot go on.
func (o *Orchestrator) applySchema(ctx context.Context, src, dst []*schema.TableSchema, res *Result) bool {
	sourceNames := schema.ByName(src)
	existing := schema.ByName(dst)

	if o.cfg.Options.DropTables {
		var drop []*schema.TableSchema
		for _, t := range schema.SortTablesByDependencies(dst) {
			if _, ok := sourceNames[t.Name]; ok {
				drop = append(drop, t)
			}
		}
		for _, t := range schema.Reverse(drop) {
			if _, err := o.cfg.Target.Conn.ExecContext(ctx, o.target.DropTableQuery(t.Name)); err != nil {
				res.fatal(fmt.Sprintf("failed to drop table %s", t.Name), err)
				return false
			}
			o.logger.Info("dropped target table", zap.String("table", t.Name))
			delete(existing, t.Name)
			res.Summary.SchemaChanges++
		}
	}

	var missing []*schema.TableSchema
	var shared []*schema.TableSchema
	for _, t := range src {
		if _, ok := existing[t.Name]; ok {
			shared = append(shared, t)
		} else {
			missing = append(missing, t)
		}
	}

	statements, deferred := o.createStatements(missing)
	statements = append(statements, deferred...)
	for _, stmt := range statements {
		if sqlgen.IsComment(stmt) {
			res.Warnings = append(res.Warnings, strings.TrimSpace(strings.TrimPrefix(stmt, sqlgen.CommentPrefix)))
		}
	}
	applied := sqlgen.ApplySchemaSynchronization(ctx, o.cfg.Target.Conn, statements, sqlgen.ApplyOptions{})
	if !applied.Success {
		for _, e := range applied.Errors {
			res.fatal("failed to create target schema", e)
		}
		return false
	}
	for _, t := range missing {
		res.Summary.SchemaChanges++
		for _, idx := range t.Indexes {
			if _, ok := sqlgen.TranslateCheck(idx.Partial, o.source.Kind(), o.target); idx.Partial == "" || ok {
				res.Summary.IndexesCreated++
			}
		}
		res.Summary.ConstraintsApplied += len(t.ForeignKeys)
		for _, c := range t.Constraints {
			switch c.Type {
			case schema.ConstraintUnique:
				res.Summary.ConstraintsApplied++
			case schema.ConstraintCheck:
				if _, ok := sqlgen.TranslateCheck(c.Expression, o.source.Kind(), o.target); ok {
					res.Summary.ConstraintsApplied++
				}
			}
		}
		o.logger.Info("created target table", zap.String("table", t.Name))
	}

	// Differences on tables both sides already have are left to `sync`.
	var targetShared []*schema.TableSchema
	for _, t := range shared {
		targetShared = append(targetShared, existing[t.Name])
	}
	for _, d := range diff.CompareSchemas(shared, targetShared, o.source.Kind(), o.target.Kind()).Differences {
		res.Warnings = append(res.Warnings, d.String())
	}
	return true
}

// createStatements renders CREATE TABLE for tables in dependency order.
// On PostgreSQL a reference to a table created later (a cycle) is split out
// into an ALTER TABLE returned in deferred.
func (o *Orchestrator) createStatements(tables []*schema.TableSchema) (statements, deferred []string) {
	created := make(map[string]bool, len(tables))
	pending := schema.ByName(tables)

	for _, t := range tables {
		out := t
		if o.target.Kind() == dialect.Postgres {
			var inline []schema.ForeignKeySchema
			for _, fk := range t.ForeignKeys {
				if _, later := pending[fk.ReferencedTable]; later && !created[fk.ReferencedTable] && fk.ReferencedTable != t.Name {
					deferred = append(deferred, sqlgen.AddForeignKeyStatement(t.Name, fk, o.target))
					continue
				}
				inline = append(inline, fk)
			}
			if len(inline) != len(t.ForeignKeys) {
				cp := *t
				cp.ForeignKeys = inline
				out = &cp
			}
		}
		statements = append(statements, sqlgen.CreateTableStatements(out, o.source.Kind(), o.target)...)
		created[t.Name] = true
	}
	return statements, deferred
}

func (o *Orchestrator) migrateData(ctx context.Context, src, dst []*schema.TableSchema, res *Result) {
	results := o.migrator.MigrateAllTablesData(ctx, src, dst, o.engineOptions())
	res.Tables = results

	for _, r := range results {
		res.RowsMigrated += r.RowsMigrated
		if r.RowsMigrated > 0 {
			res.Summary.DataChanges++
		}
		res.Errors = append(res.Errors, r.Errors...)

		v, err := o.migrator.VerifyDataMigration(ctx, r.TableName)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not verify %s: %v", r.TableName, err))
			continue
		}
		if !v.Match {
			res.Warnings = append(res.Warnings, fmt.Sprintf("row count mismatch for %s: source=%d target=%d",
				v.Table, v.SourceCount, v.TargetCount))
		}
	}
}

// CompareSchemas diffs the filtered source and target schemas.
func (o *Orchestrator) CompareSchemas(ctx context.Context) (result diff.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compare schemas: panic: %v", r)
		}
	}()

	src, dst, err := o.introspectBoth(ctx)
	if err != nil {
		return diff.Result{}, err
	}
	return diff.CompareSchemas(src, dst, o.source.Kind(), o.target.Kind()), nil
}

type SyncOptions struct {
	Apply bool
	Force bool
}

type SyncResult struct {
	Success        bool
	AppliedChanges int
	SQLStatements  []string
	Errors         []sqlgen.StatementError
}

// SyncSchema generates the DDL reconciling the target with the source and
// executes it when opts.Apply is set. Destructive differences only ever
// appear as comments.
func (o *Orchestrator) SyncSchema(ctx context.Context, opts SyncOptions) (res SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			err = fmt.Errorf("sync schema: panic: %v", r)
		}
	}()

	if opts.Apply {
		owner, err := o.lock.TryAcquire()
		if err != nil {
			return res, err
		}
		defer o.lock.Release(owner)
	}

	cmp, err := o.CompareSchemas(ctx)
	if err != nil {
		return res, err
	}
	res.SQLStatements = sqlgen.GenerateSyncSQL(cmp, o.target)

	if !opts.Apply {
		res.Success = true
		return res, nil
	}

	applied := sqlgen.ApplySchemaSynchronization(ctx, o.cfg.Target.Conn, res.SQLStatements, sqlgen.ApplyOptions{Force: opts.Force})
	res.Success = applied.Success
	res.AppliedChanges = len(applied.AppliedStatements)
	res.Errors = applied.Errors
	for _, e := range applied.Errors {
		o.logger.Warn("sync statement failed", zap.String("sql", e.SQL), zap.Error(e.Err))
	}
	return res, nil
}
