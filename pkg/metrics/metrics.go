// Package metrics defines the Prometheus instrumentation for the indexer and
// a small HTTP server to expose it.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "chainindexer"

// Retry outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Metrics holds all indexer instrumentation. A nil *Metrics is valid and all
// methods are no-ops, so metrics can be disabled without branching at every
// call site.
type Metrics struct {
	// Sliding window state
	lowest           prometheus.Gauge
	highest          prometheus.Gauge
	windowGap        prometheus.Gauge
	processedSetSize prometheus.Gauge

	// Fetch pipeline
	headersFetched   prometheus.Counter
	headersPublished prometheus.Counter
	fetchDuration    prometheus.Histogram

	// Retry engine
	retryAttempts  *prometheus.CounterVec
	retryExhausted *prometheus.CounterVec

	// Endpoint health
	endpointDegraded prometheus.Gauge
	endpointLatency  prometheus.Gauge

	errors *prometheus.CounterVec
}

// New creates a Metrics instance and registers everything with the provided
// registerer. Returns an error if any registration fails.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lowest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "lowest_unprocessed_height",
			Help:      "Lowest unprocessed block height",
		}),
		highest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "highest_known_height",
			Help:      "Highest known block height",
		}),
		windowGap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "window_gap",
			Help:      "Current backlog (highest - lowest)",
		}),
		processedSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "processed_set_size",
			Help:      "Number of out-of-order processed heights held in memory",
		}),
		headersFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "headers_fetched_total",
			Help:      "Total headers fetched from the chain endpoint",
		}),
		headersPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "headers_published_total",
			Help:      "Total headers published to the queue",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "fetch_duration_seconds",
			Help:      "End-to-end duration of a header fetch including retries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total retryable operation attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		retryExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Total operations that gave up after exhausting their attempt budget",
		}, []string{"operation"}),
		endpointDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "endpoint",
			Name:      "degraded",
			Help:      "1 when the windowed average endpoint latency exceeds the threshold",
		}),
		endpointLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "endpoint",
			Name:      "latency_avg_seconds",
			Help:      "Windowed average endpoint latency",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
	}

	err := errors.Join(
		reg.Register(m.lowest),
		reg.Register(m.highest),
		reg.Register(m.windowGap),
		reg.Register(m.processedSetSize),
		reg.Register(m.headersFetched),
		reg.Register(m.headersPublished),
		reg.Register(m.fetchDuration),
		reg.Register(m.retryAttempts),
		reg.Register(m.retryExhausted),
		reg.Register(m.endpointDegraded),
		reg.Register(m.endpointLatency),
		reg.Register(m.errors),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants.
const (
	ErrTypeFetch   = "fetch"
	ErrTypePublish = "publish"
	ErrTypeEncode  = "encode"
)

// UpdateWindow sets the sliding window gauges.
func (m *Metrics) UpdateWindow(lowest, highest, gap uint64, processedSetSize int) {
	if m == nil {
		return
	}
	m.lowest.Set(float64(lowest))
	m.highest.Set(float64(highest))
	m.windowGap.Set(float64(gap))
	m.processedSetSize.Set(float64(processedSetSize))
}

// ObserveFetch records a completed header fetch.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.headersFetched.Inc()
	m.fetchDuration.Observe(d.Seconds())
}

// HeaderPublished records a header delivered to the queue.
func (m *Metrics) HeaderPublished() {
	if m == nil {
		return
	}
	m.headersPublished.Inc()
}

// RetryAttempt records one attempt of a retryable operation.
func (m *Metrics) RetryAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.retryAttempts.WithLabelValues(operation, outcome).Inc()
}

// RetryExhausted records an operation giving up after its final attempt.
func (m *Metrics) RetryExhausted(operation string) {
	if m == nil {
		return
	}
	m.retryExhausted.WithLabelValues(operation).Inc()
}

// SetEndpointHealth publishes the latency monitor's view of the endpoint.
func (m *Metrics) SetEndpointHealth(avg time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.endpointLatency.Set(avg.Seconds())
	if degraded {
		m.endpointDegraded.Set(1)
	} else {
		m.endpointDegraded.Set(0)
	}
}

// IncError increments the error counter for the given type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}
