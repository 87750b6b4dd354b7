package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/envelhq/envel/internal/cli"
	"github.com/envelhq/envel/internal/daemon"
)

var (
	flagDaemonAddr     string
	flagDaemonInterval time.Duration
	flagDaemonNoSweep  bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background budget service with an HTTP API",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's status",
	RunE:  runDaemonStatus,
}

var daemonSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Ask the running daemon to sweep now",
	RunE:  runDaemonSweep,
}

func init() {
	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (defaults to config)")
	daemonCmd.Flags().DurationVar(&flagDaemonInterval, "interval", 0, "Day-change poll interval (defaults to config)")
	daemonCmd.Flags().BoolVar(&flagDaemonNoSweep, "no-initial-sweep", false, "Skip the sweep on startup")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonSweepCmd)
	rootCmd.AddCommand(daemonCmd)
}

func daemonConfig() (daemon.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return daemon.Config{}, err
	}

	dc := daemon.Config{
		Addr:          cfg.Daemon.Addr,
		WatchInterval: time.Duration(cfg.Daemon.WatchIntervalSeconds) * time.Second,
		SweepOnStart:  cfg.Daemon.SweepOnStart,
	}
	if flagDaemonAddr != "" {
		dc.Addr = flagDaemonAddr
	}
	if flagDaemonInterval > 0 {
		dc.WatchInterval = flagDaemonInterval
	}
	if flagDaemonNoSweep {
		dc.SweepOnStart = false
	}
	return dc, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	dc, err := daemonConfig()
	if err != nil {
		return err
	}

	engine, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	log := engineLogger()
	svc := daemon.New(engine, dc, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", dc.Addr).Msg("envel daemon listening")
	return svc.Run(ctx)
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	dc, err := daemonConfig()
	if err != nil {
		return err
	}

	var status daemon.Status
	if err := daemonGet(dc.Addr, "/v1/status", &status); err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", dc.Addr, err)
	}

	fmt.Printf("  Daemon at %s\n", dc.Addr)
	fmt.Printf("    Started:        %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("    Today:          %s\n", status.Today)
	fmt.Printf("    Sweeps:         %d\n", status.SweepCount)
	if !status.LastSweepAt.IsZero() {
		fmt.Printf("    Last sweep:     %s\n", status.LastSweepAt.Format(time.RFC3339))
	}
	if status.LastError != "" {
		fmt.Printf("    Last error:     %s\n", status.LastError)
	}
	fmt.Printf("    Active budgets: %d\n", status.ActiveBudgets)
	fmt.Printf("    Reserved:       %s\n", cli.FormatAmount(status.ReservedTotal))
	fmt.Printf("    Replica:        %v\n", status.ReplicaLinked)
	return nil
}

func runDaemonSweep(_ *cobra.Command, _ []string) error {
	dc, err := daemonConfig()
	if err != nil {
		return err
	}

	resp, err := http.Post("http://"+dc.Addr+"/v1/sweep", "application/json", nil)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", dc.Addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon sweep failed: %s", resp.Status)
	}
	fmt.Printf("  %s\n", body)
	return nil
}

func daemonGet(addr, path string, out any) error {
	resp, err := http.Get("http://" + addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}
