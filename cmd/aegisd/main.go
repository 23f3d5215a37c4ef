package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aegislabs/aegis/pkg/audit"
	"github.com/aegislabs/aegis/pkg/config"
	"github.com/aegislabs/aegis/pkg/daemon"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aegisd",
	Short: "Aegis - autonomous operations daemon",
	Long: `Aegis is a long-running operations daemon that schedules and executes
tasks through role-scoped handlers under bounded-autonomy governance,
records every privileged action in a hash-chained audit ledger, and
heals itself with health probes and circuit breakers.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Aegis version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(auditCmd)

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().Int("n", 20, "number of entries to print")

	for _, cmd := range []*cobra.Command{runCmd, auditVerifyCmd, auditTailCmd} {
		cmd.Flags().String("data-dir", "", "data directory (overrides config)")
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
			Dir:        cfg.LogDir,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %v", err)
		}

		daemon.Version = Version
		d := daemon.New(cfg)
		if err := d.Start(); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger := log.WithComponent("main")
		logger.Info().Str("signal", sig.String()).Msg("shutting down")

		d.Stop()
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit ledger",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit chain's integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeStore, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		result, err := ledger.VerifyChain()
		if err != nil {
			return fmt.Errorf("verification failed: %v", err)
		}
		if !result.Valid {
			fmt.Printf("✗ Chain broken at sequence %d (%d entries)\n", result.BrokenAt, result.TotalEntries)
			os.Exit(1)
		}
		fmt.Printf("✓ Chain valid (%d entries)\n", result.TotalEntries)
		return nil
	},
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the most recent audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeStore, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		n, _ := cmd.Flags().GetInt("n")
		entries, err := ledger.Recent(n)
		if err != nil {
			return err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			fmt.Printf("%6d  %s  %-12s %-24s %s\n",
				e.SequenceNumber, e.Timestamp.Format("2006-01-02T15:04:05Z"),
				e.Actor, e.Action, e.Target)
		}
		return nil
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func openLedger(cmd *cobra.Command) (*audit.Ledger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %v", err)
	}
	return audit.NewLedger(store), func() { store.Close() }, nil
}
