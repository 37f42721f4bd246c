package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
)

// FireCmd sends one pre-signed transaction to the current leader.
// Transaction construction stays external per §1 Non-goals; this
// accepts a path to a file holding base58-encoded wire bytes.
var FireCmd = &cobra.Command{
	Use:   "fire <base58-tx-bytes-file>",
	Short: "Submit one pre-signed transaction to the current leader",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bytes, err := readTxBytes(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		logger := slog.Get()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HttpTimeout)
		defer cancel()
		if err := a.primeClockAndCartographer(ctx); err != nil {
			logger.Warnf("fire: initial refresh failed, leader may be stale: %v", err)
		}

		_, endpoint, ok := a.cartographer.CurrentLeader()
		if !ok {
			return fmt.Errorf("fire: current leader unknown or blocked")
		}

		if err := a.engine.Send(context.Background(), string(endpoint), bytes); err != nil {
			return fmt.Errorf("fire: send to %s failed: %w", endpoint, err)
		}
		logger.Infof("fire: delivered %d bytes to %s", len(bytes), endpoint)
		return a.engine.Close()
	},
}

func readTxBytes(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	decoded, err := base58.Decode(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decoding base58 transaction bytes in %s: %w", path, err)
	}
	return decoded, nil
}
