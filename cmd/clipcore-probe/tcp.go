package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/appconnect-x/clipcore/pairing"
)

var tcpTimeout time.Duration

var tcpCmd = &cobra.Command{
	Use:   "tcp <host:port>",
	Short: "Probe a peer's TCP reachability using the pairing manager's timeout",
	Args:  cobra.ExactArgs(1),
	RunE:  runTCP,
}

func init() {
	rootCmd.AddCommand(tcpCmd)
	tcpCmd.Flags().DurationVar(&tcpTimeout, "timeout", pairing.ReachabilityTimeout, "Dial timeout")
}

func runTCP(cmd *cobra.Command, args []string) error {
	address := args[0]
	start := time.Now()

	conn, err := net.DialTimeout("tcp", address, tcpTimeout)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("UNREACHABLE %s (after %s): %v\n", address, elapsed, err)
		return err
	}
	defer conn.Close()

	fmt.Printf("REACHABLE %s (%s)\n", address, elapsed)
	return nil
}
