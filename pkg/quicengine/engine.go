package quicengine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/asymmetric-research/scramjet/internal/errkind"
	"github.com/asymmetric-research/scramjet/internal/metrics"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/quic-go/quic-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const alpnSolanaTpu = "solana-tpu"

const shardCount = 16

// shard is one bucket of the session cache, hand-rolled in the manner
// of the teacher's own mutex-guarded package-level caches since no
// pack example wires a third-party concurrent-map library directly.
type shard struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// Engine is the QUIC session cache and sender (spec §4.3).
type Engine struct {
	shards   [shardCount]*shard
	dial     singleflight.Group
	tlsConf  *tls.Config
	quicConf *quic.Config
	logger   *zap.SugaredLogger

	// dialFunc defaults to dialQuic; overridden in tests.
	dialFunc func(ctx context.Context, endpoint string, tlsConf *tls.Config, conf *quic.Config) (quicConn, error)
}

// dialQuic adapts quic.DialAddr to the quicConn-returning shape
// dialFunc expects.
func dialQuic(ctx context.Context, endpoint string, tlsConf *tls.Config, conf *quic.Config) (quicConn, error) {
	return quic.DialAddr(ctx, endpoint, tlsConf, conf)
}

// New builds an Engine. cert is the self-signed client certificate
// from pkg/identity; keepAlive must be strictly less than idleTimeout
// (enforced by pkg/config, not re-checked here).
func New(cert tls.Certificate, keepAlive, idleTimeout time.Duration) *Engine {
	e := &Engine{
		tlsConf: &tls.Config{
			Certificates:       []tls.Certificate{cert},
			InsecureSkipVerify: true, // validators use ephemeral certs; spec §4.3
			NextProtos:         []string{alpnSolanaTpu},
		},
		quicConf: &quic.Config{
			KeepAlivePeriod: keepAlive,
			MaxIdleTimeout:  idleTimeout,
		},
		logger:   slog.Get(),
		dialFunc: dialQuic,
	}
	for i := range e.shards {
		e.shards[i] = &shard{sessions: make(map[string]*session)}
	}
	return e
}

func (e *Engine) shardFor(endpoint string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(endpoint))
	return e.shards[h.Sum32()%shardCount]
}

// Send delivers bytes to endpoint over a single unidirectional stream
// (spec §4.3 `send`), dialing or reusing a cached session as needed.
func (e *Engine) Send(ctx context.Context, endpoint string, bytes []byte) error {
	s, err := e.acquire(ctx, endpoint)
	if err != nil {
		return err
	}
	return e.sendOn(ctx, endpoint, s, bytes)
}

// Session returns a caller-held handle for multiplexed submission
// over a shared connection (spec §4.3 `session`).
func (e *Engine) Session(ctx context.Context, endpoint string) (SessionHandle, error) {
	s, err := e.acquire(ctx, endpoint)
	if err != nil {
		return SessionHandle{}, err
	}
	return SessionHandle{engine: e, endpoint: endpoint, s: s}, nil
}

// Prewarm dials endpoint if no healthy session is cached, discarding
// the result; used by Scout to amortize handshake cost ahead of need.
func (e *Engine) Prewarm(ctx context.Context, endpoint string) error {
	_, err := e.acquire(ctx, endpoint)
	return err
}

// acquire implements the three-step lookup from spec §4.3: healthy
// hit, unhealthy evict-and-redial, or first dial. Concurrent dials to
// the same endpoint coalesce through the singleflight.Group.
func (e *Engine) acquire(ctx context.Context, endpoint string) (*session, error) {
	sh := e.shardFor(endpoint)

	sh.mu.Lock()
	s, ok := sh.sessions[endpoint]
	sh.mu.Unlock()
	if ok {
		if s.healthy() {
			metrics.DialsTotal.WithLabelValues("coalesced").Inc()
			return s, nil
		}
		e.evict(endpoint, s)
	}

	v, err, shared := e.dial.Do(endpoint, func() (any, error) {
		// A flight that finished between our cache miss and this call
		// has already cached a session; reuse it instead of redialing.
		sh.mu.Lock()
		cur, ok := sh.sessions[endpoint]
		sh.mu.Unlock()
		if ok && cur.healthy() {
			return cur, nil
		}
		return e.dialFresh(ctx, endpoint)
	})
	if err != nil {
		metrics.DialsTotal.WithLabelValues("failed").Inc()
		return nil, errkind.Mark(errkind.DialFailed, err, "dial %s", endpoint)
	}
	if !shared {
		metrics.DialsTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.DialsTotal.WithLabelValues("coalesced").Inc()
	}
	return v.(*session), nil
}

func (e *Engine) dialFresh(ctx context.Context, endpoint string) (*session, error) {
	conn, err := e.dialFunc(ctx, endpoint, e.tlsConf, e.quicConf)
	if err != nil {
		return nil, err
	}
	s := &session{conn: conn}

	sh := e.shardFor(endpoint)
	sh.mu.Lock()
	sh.sessions[endpoint] = s
	sh.mu.Unlock()
	e.updateCacheSizeMetric()
	return s, nil
}

func (e *Engine) evict(endpoint string, stale *session) {
	sh := e.shardFor(endpoint)
	sh.mu.Lock()
	if cur, ok := sh.sessions[endpoint]; ok && cur == stale {
		delete(sh.sessions, endpoint)
	}
	sh.mu.Unlock()
	stale.close()
	e.updateCacheSizeMetric()
}

func (e *Engine) updateCacheSizeMetric() {
	var n int
	for _, sh := range e.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	metrics.SessionCacheSize.Set(float64(n))
}

// sendOn opens one unidirectional stream over s and writes bytes,
// classifying any failure per spec §4.3: a write error on an
// otherwise-healthy session is transient (session kept); anything
// that indicates the connection itself is gone evicts the session.
func (e *Engine) sendOn(ctx context.Context, endpoint string, s *session, bytes []byte) error {
	stream, err := s.conn.OpenUniStreamSync(ctx)
	if err != nil {
		s.markUnhealthy()
		e.evict(endpoint, s)
		metrics.SendsTotal.WithLabelValues("connection_fatal").Inc()
		return errkind.Mark(errkind.SendFailed, err, "open stream to %s", endpoint)
	}

	if _, err := stream.Write(bytes); err != nil {
		if isConnectionFatal(err) {
			s.markUnhealthy()
			e.evict(endpoint, s)
			metrics.SendsTotal.WithLabelValues("connection_fatal").Inc()
		} else {
			metrics.SendsTotal.WithLabelValues("transient_error").Inc()
		}
		return errkind.Mark(errkind.SendFailed, err, "write to %s", endpoint)
	}
	if err := stream.Close(); err != nil {
		metrics.SendsTotal.WithLabelValues("transient_error").Inc()
		return errkind.Mark(errkind.SendFailed, err, "close stream to %s", endpoint)
	}

	metrics.SendsTotal.WithLabelValues("ok").Inc()
	return nil
}

// isConnectionFatal reports whether err indicates the underlying
// connection, not just one stream, is no longer usable.
func isConnectionFatal(err error) bool {
	var appErr *quic.ApplicationError
	var transportErr *quic.TransportError
	var idleErr *quic.IdleTimeoutError
	var statelessErr *quic.StatelessResetError
	switch {
	case errors.As(err, &appErr), errors.As(err, &transportErr), errors.As(err, &idleErr), errors.As(err, &statelessErr):
		return true
	default:
		return false
	}
}

// Close drains the session cache, closing every live connection with
// a graceful application close frame (spec §5 shutdown).
func (e *Engine) Close() error {
	var firstErr error
	for _, sh := range e.shards {
		sh.mu.Lock()
		for endpoint, s := range sh.sessions {
			if err := s.conn.CloseWithError(0, "shutting down"); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("closing session to %s: %w", endpoint, err)
			}
			delete(sh.sessions, endpoint)
		}
		sh.mu.Unlock()
	}
	e.updateCacheSizeMetric()
	return firstErr
}
