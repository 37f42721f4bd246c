// Package clock maintains current_slot as close to wall-clock reality
// as possible (spec §4.2), via two interchangeable Source
// implementations: a push-based streaming subscription and a
// pull-based poller. Readers take a relaxed atomic load; the only
// writer is whichever Source is running.
package clock

import (
	"context"
	"sync/atomic"

	"github.com/asymmetric-research/scramjet/internal/metrics"
)

// Source is the capability a Clock runs: deliver slot observations to
// onSlot until ctx is cancelled, at which point it returns nil.
type Source interface {
	Run(ctx context.Context, onSlot func(uint64)) error
}

// Clock holds the current slot, written monotonically by whichever
// Source is running, read wait-free by everyone else.
type Clock struct {
	slot atomic.Uint64
}

// New returns a Clock with no slot observed yet (CurrentSlot reads 0).
func New() *Clock {
	return &Clock{}
}

// CurrentSlot is the wait-free hot-path read (spec §5).
func (c *Clock) CurrentSlot() uint64 {
	return c.slot.Load()
}

// Observe feeds a single out-of-band slot observation through the same
// monotonic discipline as a running Source, for callers that need a
// current slot without standing up a background Clock (e.g. one-shot
// CLI submissions).
func (c *Clock) Observe(slot uint64) {
	c.observe(slot)
}

// observe monotonically advances the slot: a write that would
// decrease it is discarded (spec §3 invariant).
func (c *Clock) observe(slot uint64) {
	for {
		cur := c.slot.Load()
		if slot <= cur {
			return
		}
		if c.slot.CompareAndSwap(cur, slot) {
			metrics.CurrentSlot.Set(float64(slot))
			return
		}
	}
}

// Run drives source until ctx is cancelled, publishing every
// observation through the monotonic CAS loop. Intended to be launched
// as a background task; returns when source.Run returns.
func (c *Clock) Run(ctx context.Context, source Source) error {
	return source.Run(ctx, c.observe)
}
