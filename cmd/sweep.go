package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envelhq/envel/internal/cli"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one maintenance pass: advance cycles, materialize, close expired",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	engine, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := engine.Sweep(ctx)
	fmt.Printf("  Sweep at %s\n", res.At)
	fmt.Printf("    Cycles created:     %d\n", res.Created)
	fmt.Printf("    Cycles closed:      %d\n", res.Closed)
	fmt.Printf("    Entries emitted:    %d\n", res.Materialized)
	fmt.Printf("    Reserved total:     %s\n", cli.FormatAmount(res.ReservedTotal))
	return err
}
