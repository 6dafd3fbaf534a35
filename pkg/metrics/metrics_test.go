package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Registering a second instance on the same registry collides.
	_, err = New(reg)
	require.Error(t, err)
}

func TestUpdateWindow(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.UpdateWindow(5, 12, 7, 3)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.lowest))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.highest))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.windowGap))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.processedSetSize))
}

func TestObserveFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveFetch(250 * time.Millisecond)
	m.ObserveFetch(100 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.headersFetched))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fetchDuration))
}

func TestRetryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RetryAttempt("fetch header", OutcomeFailure)
	m.RetryAttempt("fetch header", OutcomeFailure)
	m.RetryAttempt("fetch header", OutcomeSuccess)
	m.RetryExhausted("fetch header")

	assert.Equal(t, 2.0,
		testutil.ToFloat64(m.retryAttempts.WithLabelValues("fetch header", OutcomeFailure)))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.retryAttempts.WithLabelValues("fetch header", OutcomeSuccess)))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.retryExhausted.WithLabelValues("fetch header")))
}

func TestSetEndpointHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.SetEndpointHealth(500*time.Millisecond, true)
	assert.Equal(t, 0.5, testutil.ToFloat64(m.endpointLatency))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.endpointDegraded))

	m.SetEndpointHealth(10*time.Millisecond, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.endpointDegraded))
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	// Must not panic.
	m.UpdateWindow(1, 2, 1, 0)
	m.ObserveFetch(time.Second)
	m.HeaderPublished()
	m.RetryAttempt("op", OutcomeSuccess)
	m.RetryExhausted("op")
	m.SetEndpointHealth(time.Second, true)
	m.IncError(ErrTypeFetch)
}
