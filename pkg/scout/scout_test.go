package scout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/asymmetric-research/scramjet/pkg/cartographer"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.Init()
	m.Run()
}

type fakeLeaderSource struct {
	leaders []cartographer.Leader
}

func (f *fakeLeaderSource) LeadersAhead(n int) []cartographer.Leader {
	if n >= len(f.leaders) {
		return f.leaders
	}
	return f.leaders[:n]
}

type fakeDialer struct {
	mu      sync.Mutex
	dialed  []string
	failFor map[string]bool
}

func (f *fakeDialer) Prewarm(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialed = append(f.dialed, endpoint)
	if f.failFor[endpoint] {
		return assert.AnError
	}
	return nil
}

type fakeBlocklist struct {
	blocked map[solana.PublicKey]bool
}

func (f *fakeBlocklist) IsBlocked(id solana.PublicKey) bool { return f.blocked[id] }

func TestScout_Tick_DialsUnblockedLeaders(t *testing.T) {
	good := solana.NewWallet().PublicKey()
	bad := solana.NewWallet().PublicKey()

	src := &fakeLeaderSource{leaders: []cartographer.Leader{
		{Slot: 1, Id: good, Endpoint: "1.1.1.1:8009"},
		{Slot: 2, Id: bad, Endpoint: "2.2.2.2:8009"},
	}}
	dialer := &fakeDialer{}
	shield := &fakeBlocklist{blocked: map[solana.PublicKey]bool{bad: true}}

	s := New(src, dialer, shield, time.Hour, 10)
	s.tick(context.Background())

	assert.Equal(t, []string{"1.1.1.1:8009"}, dialer.dialed)
}

func TestScout_Tick_IgnoresDialFailures(t *testing.T) {
	good := solana.NewWallet().PublicKey()
	src := &fakeLeaderSource{leaders: []cartographer.Leader{
		{Slot: 1, Id: good, Endpoint: "1.1.1.1:8009"},
	}}
	dialer := &fakeDialer{failFor: map[string]bool{"1.1.1.1:8009": true}}
	shield := &fakeBlocklist{blocked: map[solana.PublicKey]bool{}}

	s := New(src, dialer, shield, time.Hour, 10)
	assert.NotPanics(t, func() { s.tick(context.Background()) })
	assert.Equal(t, []string{"1.1.1.1:8009"}, dialer.dialed)
}

func TestScout_Run_TicksUntilCancelled(t *testing.T) {
	src := &fakeLeaderSource{leaders: []cartographer.Leader{
		{Slot: 1, Id: solana.NewWallet().PublicKey(), Endpoint: "1.1.1.1:8009"},
	}}
	dialer := &fakeDialer{}
	shield := &fakeBlocklist{blocked: map[solana.PublicKey]bool{}}

	s := New(src, dialer, shield, 5*time.Millisecond, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		dialer.mu.Lock()
		defer dialer.mu.Unlock()
		return len(dialer.dialed) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
