// Command scramjet submits Solana transactions directly to the
// current or upcoming leader's TPU over QUIC, bypassing the RPC
// fan-out path for minimal latency.
package main

import (
	"fmt"
	"os"

	"github.com/asymmetric-research/scramjet/cmd/scramjet/commands"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scramjet",
	Short: "Minimal-latency QUIC transaction submission for Solana",
	Long: `scramjet tracks the Solana leader schedule and cluster topology, keeps
warm QUIC connections to upcoming leaders, and submits pre-signed
transaction bytes directly to a validator's TPU.

Transaction construction (signing, compute-budget instructions, blockhash
fetching) happens outside this tool; fire/spam accept a path to already
signed, base58-encoded wire bytes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slog.Init()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.MonitorCmd)
	rootCmd.AddCommand(commands.FireCmd)
	rootCmd.AddCommand(commands.SpamCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
