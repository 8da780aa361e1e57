package cmd

import (
	"fmt"
	"sync"

	"db-migrate/internal/engine"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var noProgress bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate schema and data from source to target",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		var bars *progressBars
		if !noProgress {
			bars = newProgressBars()
		}

		ctx := cmd.Context()
		var onProgress engine.ProgressFunc
		if bars != nil {
			onProgress = bars.update
		}

		o, closeAll, err := newOrchestrator(ctx, cfg, onProgress)
		if err != nil {
			return err
		}
		defer closeAll()
		if bars != nil {
			uiprogress.Start()
		}

		res := o.Migrate(ctx)

		if bars != nil {
			uiprogress.Stop()
		}

		fmt.Println("\nSummary Report (Dependency Order):")
		for i, t := range res.Tables {
			icon := "✓"
			if len(t.Errors) > 0 {
				icon = "!"
			}
			fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows in %d batches (%s, %s)\n",
				icon, i+1, len(res.Tables), t.TableName, t.RowsMigrated, t.Batches, t.Pagination, t.Duration.Round(1e6))
			for _, e := range t.Errors {
				fmt.Printf("    └ Error: %s\n", e.Error())
			}
		}
		for _, w := range res.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Tables: %d  Rows: %d  Schema changes: %d  Indexes: %d  Constraints: %d\n",
			res.TablesProcessed, res.RowsMigrated, res.Summary.SchemaChanges,
			res.Summary.IndexesCreated, res.Summary.ConstraintsApplied)
		fmt.Printf("Time Elapsed: %s\n", res.Duration)

		if !res.Success {
			for _, e := range res.Errors {
				if e.Fatal {
					fmt.Printf("Fatal: %s\n", e.Error())
				}
			}
			return fmt.Errorf("migration failed with %d error(s)", len(res.Errors))
		}
		return nil
	},
}

// progressBars keeps one uiprogress bar per table. Updates may arrive from
// several tables at once in parallel mode.
type progressBars struct {
	mu   sync.Mutex
	bars map[string]*uiprogress.Bar
}

func newProgressBars() *progressBars {
	return &progressBars{bars: make(map[string]*uiprogress.Bar)}
}

func (p *progressBars) update(pr engine.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[pr.Table]
	if !ok {
		total := int(pr.Total)
		if total <= 0 {
			total = 1
		}
		name := pr.Table
		bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("%-20s", name)
		})
		p.bars[pr.Table] = bar
	}
	bar.Set(int(pr.Current))
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	f := migrateCmd.Flags()
	f.StringSliceP("tables", "t", nil, "only these tables (comma-separated)")
	f.StringSlice("exclude", nil, "skip these tables (comma-separated)")
	f.Bool("data-only", false, "copy rows only, leave the target schema alone")
	f.Bool("schema-only", false, "create missing tables only, copy no rows")
	f.Bool("drop-tables", false, "drop target tables that also exist in the source first")
	f.Int("batch-size", 0, "rows per batch (overrides config)")
	f.Bool("parallel", false, "copy several tables at once")
	f.Int("workers", 0, "tables copied at once with --parallel")
	f.Bool("continue-on-error", false, "keep going after a failed batch")
	f.BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	viper.BindPFlag("options.include_tables", f.Lookup("tables"))
	viper.BindPFlag("options.exclude_tables", f.Lookup("exclude"))
	viper.BindPFlag("options.data_only", f.Lookup("data-only"))
	viper.BindPFlag("options.schema_only", f.Lookup("schema-only"))
	viper.BindPFlag("options.drop_tables", f.Lookup("drop-tables"))
	viper.BindPFlag("options.batch_size", f.Lookup("batch-size"))
	viper.BindPFlag("options.parallel", f.Lookup("parallel"))
	viper.BindPFlag("options.parallel_workers", f.Lookup("workers"))
	viper.BindPFlag("options.continue_on_error", f.Lookup("continue-on-error"))
}
