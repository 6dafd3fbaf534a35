// Package movingstats collects exact duration statistics over a moving time
// window while holding a constant amount of memory. Measurements are grouped
// into fixed-size bins; whole bins are evicted once they fall out of the
// window, and a running total keeps reads O(1).
package movingstats

import (
	"errors"
	"math"
	"math/bits"
	"time"
)

var (
	ErrInvalidWindowSize = errors.New("invalid window size: must be greater than 0")
	ErrInvalidBinSize    = errors.New("invalid bin size: must be greater than 0 and at most the window size")
)

// bin aggregates the measurements that fell into one fixed time slice
// covering [start, start+binSize).
type bin struct {
	start    time.Time
	duration time.Duration
	count    uint64
}

func (b *bin) add(d time.Duration) {
	b.count++
	b.duration += d
}

// remove subtracts another bin's contribution. Only used to keep the
// running total in step with evictions.
func (b *bin) remove(other *bin) {
	b.count -= other.count
	b.duration -= other.duration
}

// averageGt reports whether the bin's average exceeds threshold, computed as
// duration > threshold*count to avoid division. If the right-hand side
// overflows, the average is assumed to be below any threshold.
func (b *bin) averageGt(threshold time.Duration) bool {
	rhs, ok := checkedMul(threshold, b.count)
	if !ok {
		return false
	}
	return b.duration > rhs
}

// MovingStats maintains exact totals over the trailing windowSize. Using a
// window of 5 minutes and a bin size of one second retains at most 300 bins.
//
// MovingStats performs no locking: it assumes a single writer, and readers
// must not interleave with a concurrent Add. Timestamps passed to AddAt
// should be non-decreasing; out-of-order timestamps are accepted but delay
// eviction, degrading accuracy instead of failing. Accuracy at the window
// edges is bounded by one bin size either way.
type MovingStats struct {
	windowSize time.Duration
	binSize    time.Duration
	// Oldest bin first, newest last.
	bins []bin
	// Sum over the retained bins; its start is meaningless.
	total bin
}

// New creates a MovingStats covering windowSize with bins of binSize.
func New(windowSize, binSize time.Duration) (*MovingStats, error) {
	if windowSize <= 0 {
		return nil, ErrInvalidWindowSize
	}
	if binSize <= 0 || binSize > windowSize {
		return nil, ErrInvalidBinSize
	}
	return &MovingStats{
		windowSize: windowSize,
		binSize:    binSize,
		bins:       make([]bin, 0, windowSize/binSize),
	}, nil
}

// Add records a measurement taken now.
func (s *MovingStats) Add(d time.Duration) {
	s.AddAt(time.Now(), d)
}

// AddAt records a measurement taken at the given time. The entry goes into
// the newest bin, or opens a new bin at now when the newest one is already
// older than a full bin size; then every bin that has slid out of the window
// is evicted and subtracted from the running total.
func (s *MovingStats) AddAt(now time.Time, d time.Duration) {
	needNewBin := len(s.bins) == 0 ||
		sinceSaturating(now, s.bins[len(s.bins)-1].start) >= s.binSize
	if needNewBin {
		s.bins = append(s.bins, bin{start: now})
	}

	s.expireBins(now)

	// The newest bin exists: either it survived expiry (it covers now) or
	// it was just appended.
	s.bins[len(s.bins)-1].add(d)
	s.total.add(d)
}

func (s *MovingStats) expireBins(now time.Time) {
	for len(s.bins) > 0 && sinceSaturating(now, s.bins[0].start) >= s.windowSize {
		s.total.remove(&s.bins[0])
		s.bins = s.bins[1:]
	}
}

// Average returns the mean duration over the current window. The second
// return is false when the window holds no measurements, in which case the
// average is undefined.
func (s *MovingStats) Average() (time.Duration, bool) {
	if s.total.count == 0 {
		return 0, false
	}
	return s.total.duration / time.Duration(s.total.count), true
}

// AverageGt reports whether the windowed average exceeds threshold without
// dividing; it conservatively returns false if the comparison would
// overflow. An empty window never exceeds any threshold.
func (s *MovingStats) AverageGt(threshold time.Duration) bool {
	return s.total.averageGt(threshold)
}

// TotalDuration returns the sum of all measurements in the window.
func (s *MovingStats) TotalDuration() time.Duration {
	return s.total.duration
}

// TotalCount returns the number of measurements in the window.
func (s *MovingStats) TotalCount() uint64 {
	return s.total.count
}

// sinceSaturating returns now-then, clamped at zero when then is in the
// future (an out-of-order timestamp).
func sinceSaturating(now, then time.Time) time.Duration {
	d := now.Sub(then)
	if d < 0 {
		return 0
	}
	return d
}

// checkedMul multiplies a non-negative duration by a count, reporting
// failure instead of overflowing.
func checkedMul(d time.Duration, n uint64) (time.Duration, bool) {
	if d <= 0 || n == 0 {
		return 0, d >= 0
	}
	hi, lo := bits.Mul64(uint64(d), n)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return time.Duration(lo), true
}
