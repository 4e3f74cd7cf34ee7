package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health <base-url>",
	Short: "Query a running component's /health endpoint",
	Long:  `Fetches GET <base-url>/health and pretty-prints the JSON health report.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "HTTP request timeout")
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: healthTimeout}

	resp, err := client.Get(args[0] + "/health")
	if err != nil {
		return fmt.Errorf("failed to reach health endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}

	indented, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(indented))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
