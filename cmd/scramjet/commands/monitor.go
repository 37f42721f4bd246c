package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// MonitorCmd runs the core subsystems while rendering a live table of
// current slot, current leader, and the leader's TPU endpoint,
// refreshed every MONITOR_INTERVAL_MS.
var MonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the core subsystems with a live status display",
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
			<-sigCh
			cancel()
		}()

		go a.runBackgroundTasks(ctx)

		area, err := pterm.DefaultArea.Start()
		if err != nil {
			logger.Warnf("monitor: live display unavailable, falling back to plain logging: %v", err)
			<-ctx.Done()
			return nil
		}
		defer area.Stop()

		ticker := time.NewTicker(a.cfg.MonitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				area.Update(a.renderStatus())
			}
		}
	},
}

func (a *app) renderStatus() string {
	slot := a.clock.CurrentSlot()
	id, ep, ok := a.cartographer.CurrentLeader()
	leaderCol := "unknown"
	endpointCol := "-"
	if ok {
		leaderCol = id.String()
		endpointCol = string(ep)
	}

	rows := pterm.TableData{
		{"field", "value"},
		{"current slot", fmt.Sprintf("%d", slot)},
		{"current leader", leaderCol},
		{"leader tpu endpoint", endpointCol},
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return fmt.Sprintf("scramjet monitor: render error: %v", err)
	}
	return out
}
