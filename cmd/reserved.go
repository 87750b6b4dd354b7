package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envelhq/envel/internal/budget"
	"github.com/envelhq/envel/internal/cli"
	"github.com/envelhq/envel/internal/model"
)

var (
	flagReservedDate   string
	flagReservedFreeze string
)

var reservedCmd = &cobra.Command{
	Use:   "reserved",
	Short: "Show the reservation total affecting a date's projected balance",
	RunE:  runReserved,
}

func init() {
	reservedCmd.Flags().StringVar(&flagReservedDate, "date", "", "Target date (YYYY-MM-DD, default today)")
	reservedCmd.Flags().StringVar(&flagReservedFreeze, "freeze", "", "Ignore spend after this date (YYYY-MM-DD)")
	rootCmd.AddCommand(reservedCmd)
}

func runReserved(_ *cobra.Command, _ []string) error {
	engine, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	target := engine.Today()
	if flagReservedDate != "" {
		target, err = model.ParseDate(flagReservedDate)
		if err != nil {
			return err
		}
	}

	var opts budget.ProjectionOptions
	if flagReservedFreeze != "" {
		opts.FreezeAt, err = model.ParseDate(flagReservedFreeze)
		if err != nil {
			return err
		}
	}

	total := engine.ReservedTotal(target, opts)
	fmt.Printf("  Reserved as of %s: %s\n", target, cli.FormatAmount(total))
	return nil
}
