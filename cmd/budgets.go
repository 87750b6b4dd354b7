package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envelhq/envel/internal/cli"
)

var flagBudgetsAll bool

var budgetsCmd = &cobra.Command{
	Use:   "budgets",
	Short: "List budget records",
	RunE:  runBudgetsList,
}

func init() {
	budgetsCmd.Flags().BoolVarP(&flagBudgetsAll, "all", "a", false, "Include closed records")
	rootCmd.AddCommand(budgetsCmd)
}

func runBudgetsList(_ *cobra.Command, _ []string) error {
	engine, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	records := engine.Budgets()
	if !flagBudgetsAll {
		records = engine.ListActive()
	}
	if len(records) == 0 {
		fmt.Println(cli.RenderStatusLine("  No matching budget records."))
		return nil
	}

	t := cli.Table{
		Headers: []string{"Tag", "Type", "Start", "End", "Initial", "Spent", "Reserved", "Status"},
	}
	for _, b := range records {
		t.Rows = append(t.Rows, []string{
			b.Tag,
			string(b.Type),
			cli.FormatDate(b.StartDate),
			cli.FormatDate(b.EndDate),
			cli.FormatAmount(b.InitialValue),
			cli.FormatAmount(b.SpentValue),
			cli.FormatAmount(b.ReservedValue),
			string(b.Status),
		})
	}
	fmt.Print(cli.RenderTable(t))
	return nil
}
