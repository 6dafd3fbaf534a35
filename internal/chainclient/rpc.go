package chainclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultHTTPTimeout = 30 * time.Second

// RPCClient talks JSON-RPC 2.0 over HTTP to an EVM-style node.
type RPCClient struct {
	endpoint   string
	chainID    uint64
	httpClient *http.Client
	log        *zap.SugaredLogger
	nextID     atomic.Uint64
}

var _ ChainClient = (*RPCClient)(nil)

// NewRPCClient creates a client for the given HTTP endpoint. The chain ID is
// stamped onto every header the client returns.
func NewRPCClient(endpoint string, chainID uint64, log *zap.SugaredLogger) *RPCClient {
	return &RPCClient{
		endpoint:   endpoint,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		log:        log,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

// rawHeader mirrors the quantity-as-hex encoding of eth_getBlockByNumber.
type rawHeader struct {
	Number     string `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  string `json:"timestamp"`
}

func (c *RPCClient) HeaderByNumber(ctx context.Context, height uint64) (*types.Header, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber", []any{hexUint(height), false})
	if err != nil {
		return nil, err
	}
	if isNullResult(result) {
		return nil, fmt.Errorf("height %d: %w", height, ErrBlockNotFound)
	}

	var raw rawHeader
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode header at height %d: %w", height, err)
	}

	number, err := parseHexUint(raw.Number)
	if err != nil {
		return nil, fmt.Errorf("decode header number at height %d: %w", height, err)
	}
	timestamp, err := parseHexUint(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("decode header timestamp at height %d: %w", height, err)
	}

	return &types.Header{
		ChainID:    c.chainID,
		Number:     number,
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		Timestamp:  timestamp,
	}, nil
}

func (c *RPCClient) LatestHeight(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []any{})
	if err != nil {
		return 0, err
	}
	var quantity string
	if err := json.Unmarshal(result, &quantity); err != nil {
		return 0, fmt.Errorf("decode latest height: %w", err)
	}
	return parseHexUint(quantity)
}

func (c *RPCClient) call(ctx context.Context, method string, params []any) (jsoniter.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close errors are not actionable

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused before reporting the status.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: unexpected status %s", method, resp.Status)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	return rpcResp.Result, nil
}

func isNullResult(result jsoniter.RawMessage) bool {
	trimmed := strings.TrimSpace(string(result))
	return trimmed == "" || trimmed == "null"
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseHexUint(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex quantity %q: %w", s, err)
	}
	return v, nil
}
