package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/spf13/cobra"
)

// SpamCmd sends the same pre-signed transaction bytes n times over one
// held session ("machine gun" mode, spec §4.3 `session`).
var SpamCmd = &cobra.Command{
	Use:   "spam <n> <base58-tx-bytes-file>",
	Short: "Submit the same pre-signed transaction n times over a held session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("spam: n must be a positive integer, got %q", args[0])
		}
		bytes, err := readTxBytes(args[1])
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
			logger.Warnf("spam: initial refresh failed, leader may be stale: %v", err)
		}

		_, endpoint, ok := a.cartographer.CurrentLeader()
		if !ok {
			return fmt.Errorf("spam: current leader unknown or blocked")
		}

		handle, err := a.engine.Session(context.Background(), string(endpoint))
		if err != nil {
			return fmt.Errorf("spam: opening session to %s failed: %w", endpoint, err)
		}

		sent, failed := 0, 0
		for i := 0; i < n; i++ {
			if err := handle.Send(context.Background(), bytes); err != nil {
				logger.Warnf("spam: send %d/%d failed: %v", i+1, n, err)
				failed++
				continue
			}
			sent++
		}
		logger.Infof("spam: %d/%d delivered to %s", sent, n, endpoint)
		if failed == n {
			return fmt.Errorf("spam: all %d sends failed", n)
		}
		return a.engine.Close()
	},
}
