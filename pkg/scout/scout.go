// Package scout amortizes QUIC handshake cost by opportunistically
// dialing leaders expected within a short future window (spec §4.4),
// in the same ticker-driven shape as the teacher's SlotWatcher.WatchSlots.
package scout

import (
	"context"
	"time"

	"github.com/asymmetric-research/scramjet/internal/metrics"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/asymmetric-research/scramjet/pkg/cartographer"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// LeaderSource is the Cartographer capability Scout needs.
type LeaderSource interface {
	LeadersAhead(n int) []cartographer.Leader
}

// Dialer is the QUIC Engine capability Scout needs: a prewarm that
// dials endpoint if it isn't already cached. Prewarm returns only once
// the dial has finished; it does not dial in the background.
type Dialer interface {
	Prewarm(ctx context.Context, endpoint string) error
}

// Blocklist is the Shield capability Scout needs.
type Blocklist interface {
	IsBlocked(id solana.PublicKey) bool
}

// Scout is the background pre-warmer.
type Scout struct {
	cartographer LeaderSource
	engine       Dialer
	shield       Blocklist
	logger       *zap.SugaredLogger

	interval  time.Duration
	lookahead int
}

// New builds a Scout. interval and lookahead are expected to already
// have passed config.Validate's floor check.
func New(cartographer LeaderSource, engine Dialer, shield Blocklist, interval time.Duration, lookahead int) *Scout {
	return &Scout{
		cartographer: cartographer,
		engine:       engine,
		shield:       shield,
		logger:       slog.Get(),
		interval:     interval,
		lookahead:    lookahead,
	}
}

// Run ticks every interval, dialing every not-yet-cached, non-blocked
// upcoming leader endpoint. Each tick dials the endpoints one after
// another and waits for each dial to finish before the next one.
// Dial failures are logged only (spec §4.4);
// Run itself only returns when ctx is cancelled.
func (s *Scout) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scout) tick(ctx context.Context) {
	leaders := s.cartographer.LeadersAhead(s.lookahead)
	for _, l := range leaders {
		if s.shield != nil && s.shield.IsBlocked(l.Id) {
			continue
		}
		metrics.ScoutDialsTotal.Inc()
		if err := s.engine.Prewarm(ctx, string(l.Endpoint)); err != nil {
			s.logger.Debugf("scout: prewarm %s failed, will retry next cycle or on demand: %v", l.Endpoint, err)
		}
	}
}
