// Package cmd implements the envel CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/envelhq/envel/internal/budget"
	"github.com/envelhq/envel/internal/cli"
	"github.com/envelhq/envel/internal/config"
	"github.com/envelhq/envel/internal/logger"
	"github.com/envelhq/envel/internal/remote"
	"github.com/envelhq/envel/internal/store"
)

var (
	flagProfile string
	flagDataDir string
	flagRemote  string
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "envel",
	Short: "Envelope budget engine",
	Long:  "Track tagged budget cycles: reservations, recurring envelopes, and day-rollover materialization.",
	RunE:  runBudgets,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", "", "Profile name (defaults to config)")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Local data directory")
	rootCmd.PersistentFlags().StringVar(&flagRemote, "remote", "", "Replica base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress log output")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagProfile != "" {
		cfg.General.Profile = flagProfile
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	if flagRemote != "" {
		cfg.Remote.BaseURL = flagRemote
	}
	return cfg, nil
}

// openEngine is the shared wiring path used by all commands: config,
// local store, optional replica, engine. The returned closer must be
// called when done.
func openEngine() (*budget.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(config.DataPath(cfg), cfg.General.Profile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local store: %w", err)
	}

	var replica budget.Replica
	if c := remote.NewClient(cfg.Remote.BaseURL, config.RemoteToken(cfg), cfg.General.Profile); c != nil {
		replica = c
	}

	engine := budget.NewEngine(st, replica, budget.Options{Logger: engineLogger()})
	return engine, func() { _ = st.Close() }, nil
}

func engineLogger() zerolog.Logger {
	if flagQuiet {
		return logger.Nop()
	}
	return logger.New()
}

func runBudgets(_ *cobra.Command, _ []string) error {
	engine, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Println(cli.RenderTitle("Envel Budgets"))

	records := engine.Budgets()
	if len(records) == 0 {
		fmt.Println(cli.RenderStatusLine("  No budget records. Tag transactions with a #tag to open envelopes."))
		return nil
	}

	t := cli.Table{
		Title:   "Budgets",
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

	for _, b := range records {
		if b.IsActive() {
			fmt.Printf("  %-12s %s\n", b.Tag, cli.RenderBudgetBar(b, 24))
		}
	}
	return nil
}
