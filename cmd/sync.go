package cmd

import (
	"fmt"

	"db-migrate/internal/orchestrator"

	"github.com/spf13/cobra"
)

var (
	applySync bool
	forceSync bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Generate, and optionally apply, DDL bringing the target up to the source",
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

		res, err := o.SyncSchema(cmd.Context(), orchestrator.SyncOptions{Apply: applySync, Force: forceSync})
		if err != nil {
			return err
		}

		for _, stmt := range res.SQLStatements {
			fmt.Println(stmt)
		}
		if !applySync {
			fmt.Println("-- dry run: pass --apply to execute")
			return nil
		}

		fmt.Printf("Applied %d statement(s)\n", res.AppliedChanges)
		for _, e := range res.Errors {
			fmt.Printf("    └ Error: %s\n", e.Error())
		}
		if !res.Success {
			return fmt.Errorf("sync failed with %d error(s)", len(res.Errors))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&applySync, "apply", false, "execute the generated statements")
	syncCmd.Flags().BoolVar(&forceSync, "force", false, "keep going after a failed statement")
}
