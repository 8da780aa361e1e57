package cmd

import (
	"fmt"
	"sort"

	"db-migrate/internal/diff"

	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Show schema differences between source and target",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		o, closeAll, err := newOrchestrator(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer closeAll()

		res, err := o.CompareSchemas(cmd.Context())
		if err != nil {
			return err
		}
		printComparison(res)
		return nil
	},
}

func printComparison(res diff.Result) {
	fmt.Printf("Comparing %s (%d tables) -> %s (%d tables)\n",
		res.SourceDialect, res.SourceTables, res.TargetDialect, res.TargetTables)
	if len(res.Differences) == 0 {
		fmt.Println("Schemas are identical.")
		return
	}
	for i, d := range res.Differences {
		fmt.Printf("[%02d] %s\n", i+1, d.String())
	}

	types := make([]string, 0, len(res.Summary))
	for t := range res.Summary {
		types = append(types, string(t))
	}
	sort.Strings(types)

	fmt.Println("--------------------------------------------------")
	for _, t := range types {
		fmt.Printf("%-20s : %d\n", t, res.Summary[diff.DifferenceType(t)])
	}
	fmt.Printf("Compatible: %t\n", res.Compatible)
}

func init() {
	RootCmd.AddCommand(compareCmd)
}
