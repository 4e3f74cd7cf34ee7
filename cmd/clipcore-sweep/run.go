package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/appconnect-x/clipcore/config"
	"github.com/appconnect-x/clipcore/internal/bootstrap"
	"github.com/appconnect-x/clipcore/internal/logger"
	clipsync "github.com/appconnect-x/clipcore/sync"
)

var (
	sweepConfigDir string
	sweepOnce      bool
	sweepInstallID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the TTL sweeper once, or continuously on the configured interval",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&sweepConfigDir, "config-dir", "config", "Directory containing environment config files")
	runCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep pass and exit")
	runCmd.Flags().StringVar(&sweepInstallID, "install-id", "default", "Install identifier used to derive the local clipboard key")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: sweepConfigDir})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	localKey, err := bootstrap.DeriveLocalKey(sweepInstallID)
	if err != nil {
		return fmt.Errorf("failed to derive local key: %w", err)
	}

	store, err := bootstrap.OpenClipboardStore(cfg.Storage, localKey)
	if err != nil {
		return fmt.Errorf("failed to open clipboard store: %w", err)
	}

	sweeper := clipsync.NewSweeper(store, cfg.Sync.SweepInterval)
	sweeper.Log = logger.NewDefaultLogger()

	if sweepOnce {
		count, err := store.Sweep(context.Background(), time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Printf("Swept %d expired item(s)\n", count)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Sweeping every %s (Ctrl+C to stop)...\n", cfg.Sync.SweepInterval)
	return sweeper.Run(ctx)
}
