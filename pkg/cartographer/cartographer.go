// Package cartographer resolves "who leads slot S, and where do I send
// bytes to them?" (spec §4.1). It consumes the current slot from a
// Clock, RPC epoch/schedule/cluster-node data, and a Shield blocklist,
// and publishes an immutable snapshot via atomic pointer swap so reads
// never block on a concurrent refresh.
package cartographer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asymmetric-research/scramjet/internal/errkind"
	"github.com/asymmetric-research/scramjet/internal/metrics"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/asymmetric-research/scramjet/pkg/rpc"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// SlotSource is the minimal Clock capability the Cartographer needs: a
// wait-free read of the current slot.
type SlotSource interface {
	CurrentSlot() uint64
}

// Blocklist is the minimal Shield capability the Cartographer needs.
type Blocklist interface {
	IsBlocked(id solana.PublicKey) bool
}

// Leader is one resolved (slot, validator, endpoint) tuple, as
// returned by LeadersAhead.
type Leader struct {
	Slot     uint64
	Id       solana.PublicKey
	Endpoint TpuEndpoint
}

// Cartographer is the cluster-topology and leader-schedule cache.
type Cartographer struct {
	rpc    *rpc.Client
	clock  SlotSource
	shield Blocklist
	logger *zap.SugaredLogger

	nodeMapTTL time.Duration

	snap       atomic.Pointer[snapshot]
	refreshMu  sync.Mutex
	refreshing atomic.Bool
}

// New builds a Cartographer. nodeMapTTL is the independent refresh
// cadence for the cluster node map (spec §4.1 recommends 30-60s).
func New(client *rpc.Client, clock SlotSource, shield Blocklist, nodeMapTTL time.Duration) *Cartographer {
	return &Cartographer{
		rpc:        client,
		clock:      clock,
		shield:     shield,
		logger:     slog.Get(),
		nodeMapTTL: nodeMapTTL,
	}
}

// CurrentLeader answers who leads the current slot and where to reach
// them, or (false) if unknown or blocked.
func (c *Cartographer) CurrentLeader() (solana.PublicKey, TpuEndpoint, bool) {
	slot := c.clock.CurrentSlot()
	return c.resolve(slot)
}

// LeadersAhead returns up to n distinct upcoming leaders starting from
// current slot + 1, deduplicated by endpoint, skipping blocked
// validators and unresolved identities (spec §4.1).
func (c *Cartographer) LeadersAhead(n int) []Leader {
	if n <= 0 {
		return nil
	}
	start := c.clock.CurrentSlot() + 1
	snap := c.snap.Load()
	if snap == nil {
		return nil
	}

	seenEndpoints := make(map[TpuEndpoint]struct{})
	var out []Leader
	// Bound the scan: at most one epoch's worth of slots past start,
	// so an exhausted schedule near the end of an epoch terminates.
	maxScan := snap.epoch.SlotsInEpoch
	if maxScan == 0 {
		maxScan = 1
	}
	for slot := start; slot < start+maxScan && len(out) < n; slot++ {
		id, ep, ok := c.resolveFromSnapshot(snap, slot)
		if !ok {
			continue
		}
		if _, dup := seenEndpoints[ep]; dup {
			continue
		}
		seenEndpoints[ep] = struct{}{}
		out = append(out, Leader{Slot: slot, Id: id, Endpoint: ep})
	}
	return out
}

func (c *Cartographer) resolve(slot uint64) (solana.PublicKey, TpuEndpoint, bool) {
	snap := c.snap.Load()
	return c.resolveFromSnapshot(snap, slot)
}

func (c *Cartographer) resolveFromSnapshot(snap *snapshot, slot uint64) (solana.PublicKey, TpuEndpoint, bool) {
	if snap == nil {
		metrics.CartographerResolutionsTotal.WithLabelValues("unknown").Inc()
		return solana.PublicKey{}, "", false
	}
	if !snap.epoch.contains(slot) {
		c.triggerAsyncRefresh()
		metrics.CartographerResolutionsTotal.WithLabelValues("unknown").Inc()
		return solana.PublicKey{}, "", false
	}
	id, ok := snap.leaderAt(slot)
	if !ok {
		metrics.CartographerResolutionsTotal.WithLabelValues("unknown").Inc()
		return solana.PublicKey{}, "", false
	}
	if c.shield != nil && c.shield.IsBlocked(id) {
		metrics.CartographerResolutionsTotal.WithLabelValues("blocked").Inc()
		return solana.PublicKey{}, "", false
	}
	ep, ok := snap.endpointFor(id)
	if !ok || ep == "" {
		metrics.CartographerResolutionsTotal.WithLabelValues("unknown").Inc()
		return solana.PublicKey{}, "", false
	}
	metrics.CartographerResolutionsTotal.WithLabelValues("hit").Inc()
	metrics.CartographerSnapshotAge.Set(time.Since(snap.loadedAt).Seconds())
	return id, ep, true
}

func (c *Cartographer) triggerAsyncRefresh() {
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warnf("cartographer: async refresh failed: %v", err)
		}
	}()
}

// Refresh reloads the leader schedule and node map. Safe to call
// concurrently with readers and with itself; concurrent callers
// coalesce behind refreshMu and the later one's result wins.
func (c *Cartographer) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	prev := c.snap.Load()

	epochInfo, err := c.rpc.GetEpochInfo(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Errorf("cartographer: getEpochInfo failed, serving stale snapshot: %v", err)
		return errkind.Mark(errkind.UpstreamUnavailable, err, "getEpochInfo")
	}
	firstSlot := epochInfo.AbsoluteSlot - epochInfo.SlotIndex
	window := epochWindow{Epoch: epochInfo.Epoch, FirstSlot: firstSlot, SlotsInEpoch: epochInfo.SlotsInEpoch}

	needsSchedule := prev == nil || prev.epoch.Epoch != window.Epoch
	needsNodeMap := prev == nil || time.Since(prev.nodeMapTime) >= c.nodeMapTTL || needsSchedule

	schedule := map[uint64]solana.PublicKey{}
	if !needsSchedule {
		schedule = prev.schedule
	} else {
		raw, err := c.rpc.GetLeaderSchedule(ctx, rpc.CommitmentConfirmed, firstSlot)
		if err != nil {
			c.logger.Errorf("cartographer: getLeaderSchedule failed, serving stale snapshot: %v", err)
			return errkind.Mark(errkind.UpstreamUnavailable, err, "getLeaderSchedule")
		}
		// raw is not yet available for the next epoch until the validator
		// computes it; per spec Open Question (b), nil/empty means "not
		// yet available", so we keep serving the previous snapshot.
		if len(raw) == 0 && prev != nil {
			c.logger.Warnf("cartographer: leader schedule for epoch %d not yet available, keeping prior snapshot", window.Epoch)
			return nil
		}
		for idBase58, slotIndexes := range raw {
			id, err := solana.PublicKeyFromBase58(idBase58)
			if err != nil {
				c.logger.Warnf("cartographer: skipping unparsable leader identity %q: %v", idBase58, err)
				continue
			}
			for _, idx := range slotIndexes {
				schedule[firstSlot+idx] = id
			}
		}
	}

	nodeMap := map[solana.PublicKey]TpuEndpoint{}
	nodeMapTime := prev.safeNodeMapTime()
	if !needsNodeMap {
		nodeMap = prev.nodeMap
	} else {
		nodes, err := c.rpc.GetClusterNodes(ctx)
		if err != nil {
			c.logger.Errorf("cartographer: getClusterNodes failed, serving stale node map: %v", err)
			if prev == nil {
				return errkind.Mark(errkind.UpstreamUnavailable, err, "getClusterNodes")
			}
			nodeMap = prev.nodeMap
		} else {
			for _, node := range nodes {
				id, err := solana.PublicKeyFromBase58(node.Pubkey)
				if err != nil {
					continue
				}
				addr := node.TpuQuic
				if addr == "" {
					continue
				}
				nodeMap[id] = TpuEndpoint(addr)
			}
			nodeMapTime = time.Now()
		}
	}

	next := &snapshot{
		epoch:       window,
		schedule:    schedule,
		nodeMap:     nodeMap,
		loadedAt:    time.Now(),
		nodeMapTime: nodeMapTime,
	}
	c.snap.Store(next)
	metrics.CartographerSnapshotAge.Set(0)
	return nil
}

func (s *snapshot) safeNodeMapTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.nodeMapTime
}
