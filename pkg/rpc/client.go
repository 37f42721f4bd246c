// Package rpc is a minimal JSON-RPC client for the upstream Solana RPC
// methods the core needs: getSlot, getEpochInfo, getLeaderSchedule,
// getClusterNodes, and getLatestBlockhash (the last used only by the
// external transaction-builder collaborator, exposed here for
// convenience since both share one HTTP client).
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/asymmetric-research/scramjet/internal/metrics"
	"github.com/asymmetric-research/scramjet/internal/slog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	Client struct {
		HttpClient  http.Client
		RpcUrl      string
		HttpTimeout time.Duration
		logger      *zap.SugaredLogger
	}

	Request struct {
		Jsonrpc string `json:"jsonrpc"`
		Id      int    `json:"id"`
		Method  string `json:"method"`
		Params  []any  `json:"params"`
	}

	Commitment string
)

const (
	CommitmentFinalized Commitment = "finalized"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentProcessed Commitment = "processed"
)

// epochInfoCache dedupes getEpochInfo calls to the same RPC URL within
// a short window; the leader schedule only changes once per epoch so
// there is no value in hitting the RPC more than a few times a minute.
var (
	epochInfoCacheMu   sync.Mutex
	epochInfoCache     *EpochInfo
	epochInfoCacheTime time.Time
	epochInfoCacheUrl  string
)

func NewClient(rpcUrl string, httpTimeout time.Duration) *Client {
	return &Client{HttpClient: http.Client{}, RpcUrl: rpcUrl, HttpTimeout: httpTimeout, logger: slog.Get()}
}

// getResponse is the internal helper for making RPC calls.
func getResponse[T any](
	ctx context.Context, client *Client, method string, params []any, rpcResponse *Response[T],
) error {
	metrics.RpcCallsTotal.WithLabelValues(method).Inc()
	logger := slog.Get()
	callId := uuid.New().String()
	logger.Debugf("solana rpc call %s: method=%s params=%v", callId, method, params)

	request := &Request{Jsonrpc: "2.0", Id: 1, Method: method, Params: params}
	buffer, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request %s: %w", method, callId, err)
	}

	ctx, cancel := context.WithTimeout(ctx, client.HttpTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "POST", client.RpcUrl, bytes.NewBuffer(buffer))
	if err != nil {
		return fmt.Errorf("failed to create %s request %s: %w", method, callId, err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-scramjet-call-id", callId)

	resp, err := client.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s rpc call %s failed: %w", method, callId, err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error processing %s rpc call %s: %w", method, callId, err)
	}
	logger.Debugf("%s response %s: %v", method, callId, string(body))

	if err = json.Unmarshal(body, rpcResponse); err != nil {
		return fmt.Errorf("failed to decode %s response %s body: %w", method, callId, err)
	}

	if rpcResponse.Error.Code != 0 {
		rpcResponse.Error.Method = method
		return &rpcResponse.Error
	}
	return nil
}

// GetEpochInfo returns info about the current epoch, with a 15s cache
// to deduplicate calls across Cartographer refreshes.
func (c *Client) GetEpochInfo(ctx context.Context, commitment Commitment) (*EpochInfo, error) {
	epochInfoCacheMu.Lock()
	defer epochInfoCacheMu.Unlock()
	if epochInfoCache != nil && epochInfoCacheUrl == c.RpcUrl && time.Since(epochInfoCacheTime) < 15*time.Second {
		return epochInfoCache, nil
	}
	config := map[string]string{"commitment": string(commitment)}
	var resp Response[EpochInfo]
	if err := getResponse(ctx, c, "getEpochInfo", []any{config}, &resp); err != nil {
		return nil, err
	}
	epochInfoCache = &resp.Result
	epochInfoCacheTime = time.Now()
	epochInfoCacheUrl = c.RpcUrl
	return epochInfoCache, nil
}

// GetSlot returns the slot that has reached the given commitment level.
func (c *Client) GetSlot(ctx context.Context, commitment Commitment) (uint64, error) {
	config := map[string]string{"commitment": string(commitment)}
	var resp Response[uint64]
	if err := getResponse(ctx, c, "getSlot", []any{config}, &resp); err != nil {
		return 0, err
	}
	return resp.Result, nil
}

// GetLeaderSchedule returns the leader schedule for the epoch containing
// slot, as a map of base58 validator identity -> slot indexes within
// the epoch.
func (c *Client) GetLeaderSchedule(ctx context.Context, commitment Commitment, slot uint64) (map[string][]uint64, error) {
	config := map[string]any{"commitment": string(commitment)}
	var resp Response[map[string][]uint64]
	if err := getResponse(ctx, c, "getLeaderSchedule", []any{slot, config}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// GetClusterNodes returns the TPU-relevant contact info for every node
// the RPC node currently knows about.
func (c *Client) GetClusterNodes(ctx context.Context) ([]ClusterNode, error) {
	var resp Response[[]ClusterNode]
	if err := getResponse(ctx, c, "getClusterNodes", []any{}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// GetLatestBlockhash is used by the external transaction-builder
// collaborator, not by the core itself; exposed here since it shares
// the same RPC transport.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment Commitment) (*BlockhashResult, error) {
	config := map[string]string{"commitment": string(commitment)}
	var resp Response[contextualResult[BlockhashResult]]
	if err := getResponse(ctx, c, "getLatestBlockhash", []any{config}, &resp); err != nil {
		return nil, err
	}
	return &resp.Result.Value, nil
}
