package cartographer

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// TpuEndpoint is a validator's advertised TPU-QUIC socket address, in
// "host:port" form as required by quic.DialAddr.
type TpuEndpoint string

// epochWindow bounds one epoch's absolute slot range, [FirstSlot,
// FirstSlot+SlotsInEpoch).
type epochWindow struct {
	Epoch        uint64
	FirstSlot    uint64
	SlotsInEpoch uint64
}

func (w epochWindow) contains(slot uint64) bool {
	return w.SlotsInEpoch > 0 && slot >= w.FirstSlot && slot < w.FirstSlot+w.SlotsInEpoch
}

// snapshot is the immutable, atomically-swapped unit of published
// state: one epoch's leader schedule plus the node map current at the
// time it was built. Publishing schedule and node map together, even
// though node map refreshes on its own cadence, keeps every reader's
// view internally consistent (spec §4.1 algorithm).
type snapshot struct {
	epoch       epochWindow
	schedule    map[uint64]solana.PublicKey    // absolute slot -> leader
	nodeMap     map[solana.PublicKey]TpuEndpoint
	loadedAt    time.Time
	nodeMapTime time.Time
}

func (s *snapshot) leaderAt(slot uint64) (solana.PublicKey, bool) {
	if s == nil || !s.epoch.contains(slot) {
		return solana.PublicKey{}, false
	}
	id, ok := s.schedule[slot]
	return id, ok
}

func (s *snapshot) endpointFor(id solana.PublicKey) (TpuEndpoint, bool) {
	if s == nil {
		return "", false
	}
	ep, ok := s.nodeMap[id]
	return ep, ok
}
