package cartographer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asymmetric-research/scramjet/pkg/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ slot uint64 }

func (f *fakeClock) CurrentSlot() uint64 { return f.slot }

type fakeShield struct{ blocked map[solana.PublicKey]bool }

func (f *fakeShield) IsBlocked(id solana.PublicKey) bool { return f.blocked[id] }

func newFakeServer(t *testing.T, epoch, firstSlot, slotsInEpoch uint64, schedule map[string][]uint64, nodes []rpc.ClusterNode) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("content-type", "application/json")
		switch req.Method {
		case "getEpochInfo":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{
				"absoluteSlot":%d,"blockHeight":0,"epoch":%d,"slotIndex":%d,"slotsInEpoch":%d,"transactionCount":0
			}}`, firstSlot, epoch, 0, slotsInEpoch)
		case "getLeaderSchedule":
			b, _ := json.Marshal(schedule)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, b)
		case "getClusterNodes":
			b, _ := json.Marshal(nodes)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, b)
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
}

func TestCartographer_CurrentLeader(t *testing.T) {
	validator := solana.NewWallet().PublicKey()
	blocked := solana.NewWallet().PublicKey()

	server := newFakeServer(t, 5, 1000, 10, map[string][]uint64{
		validator.String(): {0, 2},
		blocked.String():   {1},
	}, []rpc.ClusterNode{
		{Pubkey: validator.String(), TpuQuic: "1.1.1.1:8009"},
		{Pubkey: blocked.String(), TpuQuic: "2.2.2.2:8009"},
	})
	defer server.Close()

	client := rpc.NewClient(server.URL, time.Second)
	clock := &fakeClock{slot: 1000}
	shield := &fakeShield{blocked: map[solana.PublicKey]bool{blocked: true}}
	c := New(client, clock, shield, time.Minute)

	require.NoError(t, c.Refresh(context.Background()))

	id, ep, ok := c.CurrentLeader()
	require.True(t, ok)
	assert.Equal(t, validator, id)
	assert.Equal(t, TpuEndpoint("1.1.1.1:8009"), ep)

	clock.slot = 1001
	_, _, ok = c.CurrentLeader()
	assert.False(t, ok, "slot 1001 belongs to the blocked validator")
}

func TestCartographer_CurrentLeader_NoSnapshot(t *testing.T) {
	clock := &fakeClock{slot: 1}
	shield := &fakeShield{blocked: map[solana.PublicKey]bool{}}
	c := New(rpc.NewClient("http://unused", time.Second), clock, shield, time.Minute)
	_, _, ok := c.CurrentLeader()
	assert.False(t, ok)
}

func TestCartographer_CurrentLeader_EpochBoundary(t *testing.T) {
	validator := solana.NewWallet().PublicKey()
	server := newFakeServer(t, 5, 1000, 10, map[string][]uint64{
		validator.String(): {0},
	}, []rpc.ClusterNode{{Pubkey: validator.String(), TpuQuic: "1.1.1.1:8009"}})
	defer server.Close()

	client := rpc.NewClient(server.URL, time.Second)
	clock := &fakeClock{slot: 1000}
	shield := &fakeShield{blocked: map[solana.PublicKey]bool{}}
	c := New(client, clock, shield, time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	// 1010 is outside [1000, 1010) -- the next epoch, whose schedule
	// hasn't been loaded yet.
	clock.slot = 1010
	_, _, ok := c.CurrentLeader()
	assert.False(t, ok)
}

func TestCartographer_LeadersAhead_DedupesAndSkipsBlocked(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	blocked := solana.NewWallet().PublicKey()

	server := newFakeServer(t, 1, 100, 20, map[string][]uint64{
		a.String():       {1, 2}, // same endpoint as b -- dedup by endpoint
		b.String():       {3},
		blocked.String(): {4},
	}, []rpc.ClusterNode{
		{Pubkey: a.String(), TpuQuic: "1.1.1.1:8009"},
		{Pubkey: b.String(), TpuQuic: "1.1.1.1:8009"},
		{Pubkey: blocked.String(), TpuQuic: "3.3.3.3:8009"},
	})
	defer server.Close()

	client := rpc.NewClient(server.URL, time.Second)
	clock := &fakeClock{slot: 100}
	shield := &fakeShield{blocked: map[solana.PublicKey]bool{blocked: true}}
	c := New(client, clock, shield, time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	leaders := c.LeadersAhead(10)
	endpoints := make(map[TpuEndpoint]struct{})
	for _, l := range leaders {
		assert.NotEqual(t, blocked, l.Id)
		endpoints[l.Endpoint] = struct{}{}
	}
	assert.Len(t, endpoints, 1, "a and b share an endpoint, so only one entry should appear")
}
