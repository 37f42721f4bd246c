// Package quicengine delivers transaction bytes to a TPU endpoint over
// QUIC with minimal handshake cost (spec §4.3): a sharded cache of one
// live session per endpoint, coalesced dialing, and per-send error
// classification into transient (session kept) versus connection-fatal
// (session evicted).
package quicengine

import (
	"context"
	"sync"

	"github.com/quic-go/quic-go"
)

// quicConn is the subset of quic.Conn the engine relies on, kept
// narrow so tests can supply a fake without implementing quic-go's
// full connection interface.
type quicConn interface {
	OpenUniStreamSync(ctx context.Context) (quic.SendStream, error)
	CloseWithError(quic.ApplicationErrorCode, string) error
	Context() context.Context
}

// session wraps one live QUIC connection plus the health flag that
// governs whether the cache keeps serving it.
type session struct {
	mu        sync.Mutex
	conn      quicConn
	unhealthy bool
}

func (s *session) markUnhealthy() {
	s.mu.Lock()
	s.unhealthy = true
	s.mu.Unlock()
}

func (s *session) healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unhealthy {
		return false
	}
	select {
	case <-s.conn.Context().Done():
		return false
	default:
		return true
	}
}

func (s *session) close() {
	_ = s.conn.CloseWithError(0, "")
}

// SessionHandle is the caller-facing multiplexing handle returned by
// Session: one call per unidirectional stream over the shared
// connection (spec's "machine gun" mode).
type SessionHandle struct {
	engine   *Engine
	endpoint string
	s        *session
}

// Send opens a new unidirectional stream, writes bytes, and closes it
// cleanly, classifying any failure per spec §4.3.
func (h SessionHandle) Send(ctx context.Context, bytes []byte) error {
	return h.engine.sendOn(ctx, h.endpoint, h.s, bytes)
}
