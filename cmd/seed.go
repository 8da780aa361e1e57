package cmd

import (
	"fmt"
	"time"

	"db-migrate/internal/dialect"
	"db-migrate/internal/fixture"
	"db-migrate/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	seedCount  int
	seedSide   string
	seedValue  int64
	seedTables []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill tables with fake rows for rehearsing a migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		side := cfg.Source
		if seedSide == "target" {
			side = cfg.Target
		} else if seedSide != "source" {
			return fmt.Errorf("--side must be source or target, got %q", seedSide)
		}

		ctx := cmd.Context()
		db, ep, err := openSide(ctx, seedSide, side)
		if err != nil {
			return err
		}
		defer db.Close()
		d := dialect.MustGetDialect(ep.Dialect)

		all, err := schema.NewIntrospector(db, d).Introspect(ctx)
		if err != nil {
			return err
		}
		tables := schema.Filter(all, seedTables, nil)
		if len(tables) == 0 {
			return fmt.Errorf("no matching tables found for inputs: %v", seedTables)
		}

		count := viper.GetInt("seed.count")
		fmt.Printf("Seeding %d table(s) on %s with %d rows each\n", len(tables), seedSide, count)
		start := time.Now()

		uiprogress.Start()
		bar := uiprogress.AddBar(len(tables) * count).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Seeding: "
		})

		results, err := fixture.NewSeeder(db, d, seedValue, Logger).Seed(ctx, tables, count, func(string) {
			bar.Incr()
		})
		uiprogress.Stop()
		if err != nil {
			return err
		}

		fmt.Println("\nSummary Report (Dependency Order):")
		var total int64
		for i, r := range results {
			icon := "✓"
			if r.Status != "OK" {
				icon = "!"
			}
			fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
				icon, i+1, len(results), r.TableName, r.Actual, r.Target, r.Status)
			if r.ErrorMsg != "" {
				fmt.Printf("    └ Error: %s\n", r.ErrorMsg)
			}
			total += r.Actual
		}
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Total Rows: %d\n", total)
		fmt.Printf("Time Elapsed: %s\n", time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedCount, "count", 0, "rows per table (overrides config)")
	seedCmd.Flags().StringVar(&seedSide, "side", "source", "database to fill: source or target")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 1, "random seed")
	seedCmd.Flags().StringSliceVarP(&seedTables, "tables", "t", nil, "only these tables (comma-separated)")

	viper.BindPFlag("seed.count", seedCmd.Flags().Lookup("count"))
	viper.SetDefault("seed.count", 100)
}
