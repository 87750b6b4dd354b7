package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local budget records with the remote replica",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	engine, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	if !engine.HasReplica() {
		return fmt.Errorf("no replica configured; set remote.base_url or pass --remote")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	merged, err := engine.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	fmt.Printf("  Reconciled %d budget records with the replica.\n", len(merged))
	return nil
}
