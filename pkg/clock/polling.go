package clock

import (
	"context"
	"time"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/asymmetric-research/scramjet/pkg/rpc"
	"go.uber.org/zap"
)

// Polling is the fallback Source: a ticker calling getSlot at a fixed
// interval, in the same shape as the teacher's SlotWatcher.WatchSlots
// loop.
type Polling struct {
	rpc      *rpc.Client
	interval time.Duration
	logger   *zap.SugaredLogger
}

// NewPolling builds a polling Source. interval is expected to already
// have passed config.Validate's floor check.
func NewPolling(client *rpc.Client, interval time.Duration) *Polling {
	return &Polling{rpc: client, interval: interval, logger: slog.Get()}
}

func (p *Polling) Run(ctx context.Context, onSlot func(uint64)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			slot, err := p.rpc.GetSlot(ctx, rpc.CommitmentConfirmed)
			if err != nil {
				p.logger.Warnf("clock: getSlot poll failed: %v", err)
				continue
			}
			onSlot(slot)
		}
	}
}
