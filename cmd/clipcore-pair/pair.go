package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/appconnect-x/clipcore/config"
	"github.com/appconnect-x/clipcore/internal/bootstrap"
	"github.com/appconnect-x/clipcore/pairing"
)

var (
	pairQRFile    string
	pairQRText    string
	pairConfigDir string
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with a device from a scanned QR payload",
	Long: `Decode a pairing QR payload (from --qr-file or --qr), probe the peer's
reachability, and commit a trusted device record.`,
	Example: `  clipcore-pair pair --qr-file payload.json
  clipcore-pair pair --qr '{"n":"My PC","ip":"192.168.1.5","p":8765,"k":"...","fp":"SHA256:..."}'`,
	RunE: runPair,
}

func init() {
	rootCmd.AddCommand(pairCmd)

	pairCmd.Flags().StringVar(&pairQRFile, "qr-file", "", "Path to a file containing the scanned QR payload JSON")
	pairCmd.Flags().StringVar(&pairQRText, "qr", "", "QR payload JSON, given directly")
	pairCmd.Flags().StringVar(&pairConfigDir, "config-dir", "config", "Directory containing environment config files")
}

func runPair(cmd *cobra.Command, args []string) error {
	qrText, err := resolveQRText()
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.LoaderOptions{ConfigDir: pairConfigDir})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := bootstrap.OpenTrustStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open trust store: %w", err)
	}

	manager := pairing.NewManager(store, nil, nil)
	device, err := manager.Pair(context.Background(), qrText)
	if err != nil {
		return fmt.Errorf("pairing failed: %w", err)
	}

	fmt.Printf("Paired successfully:\n")
	fmt.Printf("  Device ID:    %s\n", device.ID)
	fmt.Printf("  Name:         %s\n", device.Name)
	fmt.Printf("  Fingerprint:  %s\n", device.CertificateFingerprint)
	fmt.Printf("  Trusted:      %t\n", device.IsTrusted)
	return nil
}

func resolveQRText() (string, error) {
	if pairQRText != "" {
		return pairQRText, nil
	}
	if pairQRFile != "" {
		data, err := os.ReadFile(pairQRFile)
		if err != nil {
			return "", fmt.Errorf("failed to read QR payload file: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("one of --qr or --qr-file is required")
}
