package clock

import (
	"context"
	"errors"
	"time"

	"github.com/asymmetric-research/scramjet/internal/metrics"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
)

// dialer is the subset of rpc/ws this package needs, so tests can
// substitute a fake without opening a real websocket.
type dialer interface {
	connect(ctx context.Context, wsURL string) (subscription, error)
}

// subscription is the subset of *ws.SlotsUpdatesSubscription used here.
type subscription interface {
	Recv() (*ws.SlotsUpdatesResult, error)
	Unsubscribe()
}

type wsDialer struct{}

func (wsDialer) connect(ctx context.Context, wsURL string) (subscription, error) {
	client, err := ws.Connect(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	sub, err := client.SlotsUpdatesSubscribe()
	if err != nil {
		client.Close()
		return nil, err
	}
	return &closingSubscription{client: client, sub: sub}, nil
}

// closingSubscription closes the parent ws.Client once the
// subscription itself is torn down, since rpc/ws ties the socket's
// lifetime to the Client rather than the subscription.
type closingSubscription struct {
	client *ws.Client
	sub    *ws.SlotsUpdatesSubscription
}

func (c *closingSubscription) Recv() (*ws.SlotsUpdatesResult, error) {
	return c.sub.Recv()
}

func (c *closingSubscription) Unsubscribe() {
	c.sub.Unsubscribe()
	c.client.Close()
}

// Streaming is the push-based Source (spec §4.2 Open Question (a)),
// grounded on the SlotsUpdatesSubscribe + reconnect-backoff pattern
// used for real-time slot tracking in the reference example. Delay
// doubles on every failed connection attempt up to maxDelay, and
// resets to initialDelay as soon as a subscription is established.
type Streaming struct {
	wsUrl   string
	dial    dialer
	initial time.Duration
	max     time.Duration
	logger  *zap.SugaredLogger
}

// NewStreaming builds a streaming Source against a geyser/RPC
// websocket endpoint.
func NewStreaming(wsUrl string, initialDelay, maxDelay time.Duration) *Streaming {
	return &Streaming{wsUrl: wsUrl, dial: wsDialer{}, initial: initialDelay, max: maxDelay, logger: slog.Get()}
}

func (s *Streaming) Run(ctx context.Context, onSlot func(uint64)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initial
	bo.MaxInterval = s.max
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := s.runConn(ctx, onSlot, bo)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}

		delay := bo.NextBackOff()
		s.logger.Warnf("clock: streaming subscription dropped, reconnecting in %s: %v", delay, err)
		metrics.ClockReconnectsTotal.Inc()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Streaming) runConn(ctx context.Context, onSlot func(uint64), bo *backoff.ExponentialBackOff) error {
	sub, err := s.dial.connect(ctx, s.wsUrl)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	// A successful connection resets the backoff, so a transient blip
	// doesn't leave us reconnecting at the worst-case delay forever.
	bo.Reset()

	for {
		update, err := sub.Recv()
		if err != nil {
			return err
		}
		if update == nil {
			return errors.New("clock: slot update subscription closed")
		}
		// Only "first shred received" pings are timely enough to drive
		// the current-slot estimate; the other update kinds lag it.
		if update.Type != ws.SlotsUpdatesFirstShredReceived {
			continue
		}
		onSlot(update.Slot)
	}
}
