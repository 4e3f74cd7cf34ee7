package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/appconnect-x/clipcore/config"
	"github.com/appconnect-x/clipcore/internal/bootstrap"
	"github.com/appconnect-x/clipcore/types"
)

var listConfigDir string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List paired devices",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listConfigDir, "config-dir", "config", "Directory containing environment config files")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: listConfigDir})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := bootstrap.OpenTrustStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open trust store: %w", err)
	}

	devices, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	fmt.Println(formatDeviceTable(devices))
	fmt.Printf("\nTotal devices: %d\n", len(devices))
	return nil
}

func formatDeviceTable(devices []*types.Device) string {
	if len(devices) == 0 {
		return "No paired devices"
	}

	output := "Name                 | Fingerprint                                                      | Trusted\n"
	output += strings.Repeat("-", 95) + "\n"
	for _, d := range devices {
		name := d.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		output += fmt.Sprintf("%-20s | %-64s | %t\n", name, d.CertificateFingerprint, d.IsTrusted)
	}
	return output
}
