package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envelhq/envel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(config.ConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Profile:  %s\n", cfg.General.Profile)
	fmt.Printf("    Data dir: %s\n", config.DataDir(cfg))
	fmt.Println()

	fmt.Println("  [Remote]")
	if cfg.Remote.BaseURL != "" {
		fmt.Printf("    Base URL: %s\n", cfg.Remote.BaseURL)
		if config.RemoteToken(cfg) != "" {
			fmt.Printf("    Token:    %s\n", maskToken(config.RemoteToken(cfg)))
		} else {
			fmt.Println("    Token:    not configured")
		}
	} else {
		fmt.Println("    Not configured (local-only mode)")
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Addr:           %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Watch interval: %ds\n", cfg.Daemon.WatchIntervalSeconds)
	fmt.Printf("    Sweep on start: %v\n", cfg.Daemon.SweepOnStart)
	return nil
}

func maskToken(tok string) string {
	if len(tok) <= 8 {
		return "********"
	}
	return tok[:4] + "..." + tok[len(tok)-4:]
}
