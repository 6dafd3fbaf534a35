// Package health tracks endpoint latency over a moving window and flags the
// endpoint as degraded when the windowed average crosses a threshold.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/pkg/movingstats"
)

// Monitor aggregates request latencies and answers whether the endpoint is
// currently degraded. It wraps a single-writer MovingStats with a mutex so
// many workers can report latencies concurrently.
type Monitor struct {
	mu        sync.Mutex
	stats     *movingstats.MovingStats
	threshold time.Duration
}

// NewMonitor creates a Monitor over the given window with the given bin
// granularity. The endpoint counts as degraded when the average latency in
// the window exceeds threshold.
func NewMonitor(window, bin, threshold time.Duration) (*Monitor, error) {
	stats, err := movingstats.New(window, bin)
	if err != nil {
		return nil, err
	}
	return &Monitor{stats: stats, threshold: threshold}, nil
}

// Observe records one request latency.
func (m *Monitor) Observe(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Add(d)
}

// Degraded reports whether the windowed average latency exceeds the
// threshold. An empty window is never degraded.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.AverageGt(m.threshold)
}

// Snapshot returns the windowed average and sample count. ok is false when
// the window is empty and the average is undefined.
func (m *Monitor) Snapshot() (avg time.Duration, count uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	avg, ok = m.stats.Average()
	return avg, m.stats.TotalCount(), ok
}

// Watch samples the monitor every interval until ctx is done, warning on
// degradation and recovery transitions. onSample, when non-nil, receives
// every observation so callers can export gauges.
func Watch(
	ctx context.Context,
	log *zap.SugaredLogger,
	m *Monitor,
	interval time.Duration,
	onSample func(avg time.Duration, degraded bool),
) {
	t := time.NewTicker(interval)
	defer t.Stop()

	var wasDegraded bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			avg, count, _ := m.Snapshot()
			degraded := m.Degraded()
			if onSample != nil {
				onSample(avg, degraded)
			}
			switch {
			case degraded && !wasDegraded:
				log.Warnw("endpoint latency degraded",
					"avg", avg, "samples", count, "threshold", m.threshold)
			case !degraded && wasDegraded:
				log.Infow("endpoint latency recovered",
					"avg", avg, "samples", count)
			}
			wasDegraded = degraded
		}
	}
}
