package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/spf13/cobra"
)

// RunCmd starts every background subsystem (Clock, Cartographer,
// Scout, Shield) and blocks until interrupted.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the core subsystems until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Get()
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			logger.Infof("received %s, shutting down", sig)
			cancel()
		}()

		logger.Infof("scramjet starting: rpc=%s streaming=%v", a.cfg.RpcUrl, a.cfg.Streaming())
		a.runBackgroundTasks(ctx)
		logger.Info("scramjet stopped")
		return nil
	},
}
