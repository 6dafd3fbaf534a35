package retry

import (
	"math"
	"math/rand"
	"time"
)

// Default backoff constants: 2ms, 4ms, 8ms, ... capped at 30s.
const (
	DefaultBase     = 2 * time.Millisecond
	DefaultGrowth   = 2.0
	DefaultMaxDelay = 30 * time.Second
)

// Backoff generates the delay before retry k as a pure function of the
// attempt index: min(Base * Growth^k, MaxDelay), perturbed by full jitter
// (uniform in [0, delay]) so concurrent callers do not retry in lockstep.
// It carries no state, so a Backoff value is trivially restartable and may
// be shared across concurrent runs.
type Backoff struct {
	Base     time.Duration
	Growth   float64
	MaxDelay time.Duration
}

// DefaultBackoff returns the backoff used when a policy does not override it.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:     DefaultBase,
		Growth:   DefaultGrowth,
		MaxDelay: DefaultMaxDelay,
	}
}

// Bound returns the undithered delay for retry index k (zero-based), capped
// at MaxDelay. Bound is non-negative and non-decreasing in k.
func (b Backoff) Bound(k uint64) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	d := float64(b.Base) * math.Pow(b.Growth, float64(k))
	if d >= float64(b.MaxDelay) || math.IsInf(d, 1) {
		return b.MaxDelay
	}
	return time.Duration(d)
}

// Delay returns the jittered delay for retry index k: uniform in
// [0, Bound(k)].
func (b Backoff) Delay(k uint64) time.Duration {
	bound := b.Bound(k)
	if bound <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(bound) + 1))
}
