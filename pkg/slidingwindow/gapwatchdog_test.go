package slidingwindow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGapWatchdogWarnsOnLargeGap(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	sugar := zap.New(core).Sugar()

	s, err := NewState(0, 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartGapWatchdog(ctx, sugar, s, 5*time.Millisecond, 10, nil)
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("backlog gap too large").Len() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestGapWatchdogReportsSamples(t *testing.T) {
	t.Parallel()

	s, err := NewState(5, 9)
	require.NoError(t, err)

	var mu sync.Mutex
	var gaps []uint64
	onSample := func(lowest, highest, gap uint64) {
		mu.Lock()
		defer mu.Unlock()
		gaps = append(gaps, gap)
		assert.EqualValues(t, 5, lowest)
		assert.EqualValues(t, 9, highest)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartGapWatchdog(ctx, zap.NewNop().Sugar(), s, 5*time.Millisecond, 100, onSample)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gaps) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.EqualValues(t, 4, gaps[0])
}

func TestGapWatchdogBackfillCompleteIsZeroGap(t *testing.T) {
	t.Parallel()

	s, err := NewState(0, 0)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(0))
	_, _ = s.AdvanceLowest() // lowest=1, highest=0

	var mu sync.Mutex
	var sampled []uint64
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartGapWatchdog(ctx, zap.NewNop().Sugar(), s, 5*time.Millisecond, 0,
			func(_, _, gap uint64) {
				mu.Lock()
				defer mu.Unlock()
				sampled = append(sampled, gap)
			})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sampled) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, sampled[0])
}
