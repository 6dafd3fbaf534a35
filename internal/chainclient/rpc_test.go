package chainclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler func(method string, params []any) (string, int)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
			ID     uint64 `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body, status := handler(req.Method, req.Params)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHeaderByNumber(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(method string, params []any) (string, int) {
		require.Equal(t, "eth_getBlockByNumber", method)
		require.Equal(t, "0x2a", params[0])
		require.Equal(t, false, params[1])
		return `{"jsonrpc":"2.0","id":1,"result":{
			"number":"0x2a",
			"hash":"0xabc",
			"parentHash":"0xdef",
			"timestamp":"0x65f0000"
		}}`, http.StatusOK
	})

	c := NewRPCClient(srv.URL, 1, zap.NewNop().Sugar())
	header, err := c.HeaderByNumber(context.Background(), 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, header.Number)
	assert.Equal(t, "0xabc", header.Hash)
	assert.Equal(t, "0xdef", header.ParentHash)
	assert.EqualValues(t, 0x65f0000, header.Timestamp)
	assert.EqualValues(t, 1, header.ChainID)
}

func TestHeaderByNumberMissingBlock(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(string, []any) (string, int) {
		return `{"jsonrpc":"2.0","id":1,"result":null}`, http.StatusOK
	})

	c := NewRPCClient(srv.URL, 1, zap.NewNop().Sugar())
	_, err := c.HeaderByNumber(context.Background(), 99)
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestHeaderByNumberRPCError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(string, []any) (string, int) {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not ready"}}`, http.StatusOK
	})

	c := NewRPCClient(srv.URL, 1, zap.NewNop().Sugar())
	_, err := c.HeaderByNumber(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlockNotFound)
	assert.Contains(t, err.Error(), "header not ready")
}

func TestLatestHeight(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(method string, _ []any) (string, int) {
		require.Equal(t, "eth_blockNumber", method)
		return `{"jsonrpc":"2.0","id":1,"result":"0x64"}`, http.StatusOK
	})

	c := NewRPCClient(srv.URL, 1, zap.NewNop().Sugar())
	height, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 100, height)
}

func TestCallRejectsNon200(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(string, []any) (string, int) {
		return `busy`, http.StatusServiceUnavailable
	})

	c := NewRPCClient(srv.URL, 1, zap.NewNop().Sugar())
	_, err := c.LatestHeight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestParseHexUint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0x0", want: 0},
		{in: "0x2a", want: 42},
		{in: "0xffffffffffffffff", want: ^uint64(0)},
		{in: "0x", wantErr: true},
		{in: "", wantErr: true},
		{in: "0xzz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseHexUint(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
