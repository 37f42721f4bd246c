package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.Init()
	os.Exit(m.Run())
}

func TestClient_GetSlot(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    uint64
		wantErr bool
	}{
		{
			name: "ok",
			body: `{"jsonrpc":"2.0","result":250000,"id":1}`,
			want: 250000,
		},
		{
			name:    "rpc error",
			body:    `{"jsonrpc":"2.0","error":{"code":-32000,"message":"node unhealthy"},"id":1}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req Request
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "getSlot", req.Method)
				w.Header().Set("content-type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, time.Second)
			got, err := client.GetSlot(context.Background(), CommitmentFinalized)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_GetLeaderSchedule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc":"2.0",
			"result":{"11111111111111111111111111111111":[0,1,2]},
			"id":1
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	schedule, err := client.GetLeaderSchedule(context.Background(), CommitmentConfirmed, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, schedule["11111111111111111111111111111111"])
}

func TestClient_GetClusterNodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc":"2.0",
			"result":[{"pubkey":"abc","tpuQuic":"1.2.3.4:8009"}],
			"id":1
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	nodes, err := client.GetClusterNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "1.2.3.4:8009", nodes[0].TpuQuic)
}

func TestError_Error(t *testing.T) {
	err := &Error{Message: "boom", Code: -1, Method: "getSlot"}
	assert.Contains(t, err.Error(), "getSlot")
	assert.Contains(t, err.Error(), "boom")
}
