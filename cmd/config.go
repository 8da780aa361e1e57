package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-migrate/internal/database"
	"db-migrate/internal/dialect"
	"db-migrate/internal/engine"
	"db-migrate/internal/orchestrator"

	"github.com/spf13/viper"
)

var envReplacer = strings.NewReplacer(".", "_")

type DBConfig struct {
	Dialect string `mapstructure:"dialect"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

type OptionsConfig struct {
	IncludeTables   []string `mapstructure:"include_tables"`
	ExcludeTables   []string `mapstructure:"exclude_tables"`
	DropTables      bool     `mapstructure:"drop_tables"`
	DataOnly        bool     `mapstructure:"data_only"`
	SchemaOnly      bool     `mapstructure:"schema_only"`
	BatchSize       int      `mapstructure:"batch_size"`
	Parallel        bool     `mapstructure:"parallel"`
	ParallelWorkers int      `mapstructure:"parallel_workers"`
	ContinueOnError bool     `mapstructure:"continue_on_error"`
}

// FileConfig mirrors db-migrate.yaml.
type FileConfig struct {
	Source  DBConfig      `mapstructure:"source"`
	Target  DBConfig      `mapstructure:"target"`
	Options OptionsConfig `mapstructure:"options"`
	Log     struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func LoadConfig() (*FileConfig, error) {
	var cfg FileConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func (c DBConfig) database() (database.Config, error) {
	kind, err := dialect.ParseKind(c.Dialect)
	if err != nil {
		return database.Config{}, err
	}
	return database.Config{Dialect: kind, Driver: c.Driver, DSN: c.DSN}, nil
}

func (o OptionsConfig) orchestrator() orchestrator.Options {
	policy := engine.Abort
	if o.ContinueOnError {
		policy = engine.Continue
	}
	return orchestrator.Options{
		IncludeTables:   o.IncludeTables,
		ExcludeTables:   o.ExcludeTables,
		DropTables:      o.DropTables,
		DataOnly:        o.DataOnly,
		SchemaOnly:      o.SchemaOnly,
		BatchSize:       o.BatchSize,
		Parallel:        o.Parallel,
		ParallelWorkers: o.ParallelWorkers,
		ErrorPolicy:     policy,
	}
}

// openSide opens one configured database. name is "source" or "target".
func openSide(ctx context.Context, name string, c DBConfig) (*sql.DB, orchestrator.Endpoint, error) {
	cfg, err := c.database()
	if err != nil {
		return nil, orchestrator.Endpoint{}, fmt.Errorf("%s: %w", name, err)
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, orchestrator.Endpoint{}, fmt.Errorf("%s: %w", name, err)
	}
	return db, orchestrator.Endpoint{Dialect: cfg.Dialect, Conn: db}, nil
}

// newOrchestrator opens both sides. The returned func closes them.
func newOrchestrator(ctx context.Context, cfg *FileConfig, onProgress engine.ProgressFunc) (*orchestrator.Orchestrator, func(), error) {
	srcDB, src, err := openSide(ctx, "source", cfg.Source)
	if err != nil {
		return nil, nil, err
	}
	dstDB, dst, err := openSide(ctx, "target", cfg.Target)
	if err != nil {
		srcDB.Close()
		return nil, nil, err
	}
	closeAll := func() {
		srcDB.Close()
		dstDB.Close()
	}

	opts := cfg.Options.orchestrator()
	opts.OnProgress = onProgress
	o, err := orchestrator.New(orchestrator.Config{
		Source:  src,
		Target:  dst,
		Options: opts,
	}, nil, Logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return o, closeAll, nil
}
