package metrics

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	server := NewServer(":0", reg, nil)

	require.NotNil(t, server)
	require.NotNil(t, server.httpServer)
	require.Equal(t, ":0", server.httpServer.Addr)
}

func httpGet(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func TestServerStartAndShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	var healthy atomic.Bool
	healthy.Store(true)
	server := NewServer("127.0.0.1:19207", reg, healthy.Load)
	errCh := server.Start()

	time.Sleep(50 * time.Millisecond)

	resp, err := httpGet(t.Context(), "http://127.0.0.1:19207/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))

	metricsResp, err := httpGet(t.Context(), "http://127.0.0.1:19207/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)

	readyResp, err := httpGet(t.Context(), "http://127.0.0.1:19207/readyz")
	require.NoError(t, err)
	defer readyResp.Body.Close()
	require.Equal(t, http.StatusOK, readyResp.StatusCode)

	// Readiness follows the callback; liveness does not.
	healthy.Store(false)

	notReadyResp, err := httpGet(t.Context(), "http://127.0.0.1:19207/readyz")
	require.NoError(t, err)
	defer notReadyResp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, notReadyResp.StatusCode)

	stillAliveResp, err := httpGet(t.Context(), "http://127.0.0.1:19207/healthz")
	require.NoError(t, err)
	defer stillAliveResp.Body.Close()
	require.Equal(t, http.StatusOK, stillAliveResp.StatusCode)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server to stop")
	}
}
