package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffBoundMonotonicAndCapped(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	prev := time.Duration(-1)
	for k := uint64(0); k < 100; k++ {
		bound := b.Bound(k)
		assert.GreaterOrEqual(t, bound, time.Duration(0))
		assert.LessOrEqual(t, bound, b.MaxDelay)
		assert.GreaterOrEqual(t, bound, prev, "bound must be non-decreasing at k=%d", k)
		prev = bound
	}

	// Doubling from 2ms, the cap is reached by index 14 (2ms * 2^14 > 30s).
	assert.Equal(t, 2*time.Millisecond, b.Bound(0))
	assert.Equal(t, 4*time.Millisecond, b.Bound(1))
	assert.Equal(t, b.MaxDelay, b.Bound(14))
	assert.Equal(t, b.MaxDelay, b.Bound(63))
}

func TestBackoffDelayStaysWithinBound(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	for k := uint64(0); k < 20; k++ {
		bound := b.Bound(k)
		for range 50 {
			d := b.Delay(k)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, bound)
		}
	}
}

func TestBackoffZeroBaseNeverDelays(t *testing.T) {
	t.Parallel()

	b := Backoff{}
	for k := uint64(0); k < 10; k++ {
		assert.Zero(t, b.Bound(k))
		assert.Zero(t, b.Delay(k))
	}
}

func TestBackoffHugeIndexDoesNotOverflow(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	assert.Equal(t, b.MaxDelay, b.Bound(1<<20))
}
