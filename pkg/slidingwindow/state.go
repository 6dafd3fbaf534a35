package slidingwindow

import (
	"errors"
	"fmt"
	"sync"
)

var ErrInvalidWatermark = errors.New("invalid watermark update")

// State is a thread-safe in-memory store for the sliding window: the
// watermarks, the processed and in-flight height sets, and per-height
// failure counters. A single mutex guards everything; operations are short
// and the window scan runs under one lock acquisition.
type State struct {
	mu         sync.Mutex
	lowest     uint64
	highest    uint64
	processed  map[uint64]struct{}
	inflight   map[uint64]struct{}
	failCounts map[uint64]int
}

// NewState creates a State with the given initial watermarks.
func NewState(initialLowest, initialHighest uint64) (*State, error) {
	if initialHighest < initialLowest {
		return nil, fmt.Errorf(
			"%w: initial highest < lowest: %d < %d",
			ErrInvalidWatermark, initialHighest, initialLowest,
		)
	}
	return &State{
		lowest:     initialLowest,
		highest:    initialHighest,
		processed:  make(map[uint64]struct{}, 1024),
		inflight:   make(map[uint64]struct{}),
		failCounts: make(map[uint64]int),
	}, nil
}

// GetLowest returns the lowest unprocessed height.
func (s *State) GetLowest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lowest
}

// GetHighest returns the highest known height.
func (s *State) GetHighest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highest
}

// Window returns both watermarks atomically.
func (s *State) Window() (lowest, highest uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lowest, s.highest
}

// SetHighest raises the highest watermark. The new value must not fall below
// the current lowest.
func (s *State) SetHighest(newHighest uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newHighest < s.lowest {
		return fmt.Errorf(
			"%w: new highest < lowest: %d < %d",
			ErrInvalidWatermark, newHighest, s.lowest,
		)
	}
	s.highest = newHighest
	return nil
}

// ResetLowest sets the lowest watermark explicitly (used for re-ingestion).
// It may move lowest forward or backward, but never past highest. Processed
// marks strictly below the new lowest are dropped; they are committed and no
// longer needed.
func (s *State) ResetLowest(newLowest uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newLowest > s.highest {
		return fmt.Errorf(
			"%w: new lowest > highest: %d > %d",
			ErrInvalidWatermark, newLowest, s.highest,
		)
	}
	s.lowest = newLowest
	for h := range s.processed {
		if h < newLowest {
			delete(s.processed, h)
		}
	}
	return nil
}

// MarkProcessed records a height as processed. Heights below lowest are
// already committed and are accepted silently; heights above highest are
// rejected.
func (s *State) MarkProcessed(h uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h < s.lowest {
		return nil
	}
	if h > s.highest {
		return fmt.Errorf(
			"%w: height above highest: %d > %d",
			ErrInvalidWatermark, h, s.highest,
		)
	}
	s.processed[h] = struct{}{}
	return nil
}

// IsProcessed reports whether a height is processed. Heights below the
// current lowest are committed and implicitly processed.
func (s *State) IsProcessed(h uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isProcessedLocked(h)
}

func (s *State) isProcessedLocked(h uint64) bool {
	if h < s.lowest {
		return true
	}
	_, ok := s.processed[h]
	return ok
}

// AdvanceLowest slides lowest forward over contiguous processed heights.
// Returns the new lowest and whether it moved. Idempotent.
func (s *State) AdvanceLowest() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original := s.lowest
	for s.lowest <= s.highest {
		if _, ok := s.processed[s.lowest]; !ok {
			break
		}
		delete(s.processed, s.lowest)
		s.lowest++
	}
	return s.lowest, s.lowest != original
}

// TrySetInflight atomically claims a height for processing. It fails when the
// height is outside the window, already processed, or already claimed.
func (s *State) TrySetInflight(h uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h > s.highest || s.isProcessedLocked(h) {
		return false
	}
	if _, ok := s.inflight[h]; ok {
		return false
	}
	s.inflight[h] = struct{}{}
	return true
}

// UnsetInflight releases a claim.
func (s *State) UnsetInflight(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, h)
}

// FindNextUnclaimed returns the lowest height in the window that is neither
// processed nor in flight.
func (s *State) FindNextUnclaimed() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := s.lowest; h <= s.highest; h++ {
		if s.isProcessedLocked(h) {
			continue
		}
		if _, ok := s.inflight[h]; ok {
			continue
		}
		return h, true
	}
	return 0, false
}

// ProcessedCount returns the size of the out-of-order processed set.
func (s *State) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// IncrementFailure bumps the failure counter for a height and returns the
// new count.
func (s *State) IncrementFailure(h uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCounts[h]++
	return s.failCounts[h]
}

// FailureCount returns the current failure count for a height.
func (s *State) FailureCount(h uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failCounts[h]
}

// ResetFailures clears the failure counter for a height.
func (s *State) ResetFailures(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failCounts, h)
}
