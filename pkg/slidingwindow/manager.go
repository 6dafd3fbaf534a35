package slidingwindow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Worker processes a single block height. Implementations must be safe for
// concurrent use; the manager runs many workers at once.
type Worker interface {
	Process(ctx context.Context, height uint64) error
}

// Manager schedules window heights onto workers. Backfill work fills spare
// capacity up to a priority cap; realtime heights bypass that cap so tip
// ingestion stays low-latency even during a deep backfill.
type Manager struct {
	log    *zap.SugaredLogger
	state  *State
	worker Worker

	// Limits total concurrent workers (both realtime and backfill).
	workerSem *semaphore.Weighted
	// Caps how many of the concurrent workers may be backfill tasks.
	backfillSem *semaphore.Weighted

	// Input for new heights (send-only by callers).
	heightChan chan uint64
	// Wake-up signal to re-run scheduling; buffered (size 1) to coalesce.
	workReady chan struct{}

	// Failure threshold per height; reaching it shuts down Run.
	maxFailures int
	failureChan chan uint64
}

// NewManager validates arguments and creates a Manager.
// Constraints: concurrency>0; 0<backfillPriority<concurrency;
// heightChanCapacity>0; maxFailures>0.
func NewManager(
	log *zap.SugaredLogger,
	s *State,
	w Worker,
	concurrency, backfillPriority uint64,
	heightChanCapacity, maxFailures int,
) (*Manager, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if s == nil {
		return nil, errors.New("invalid state: must not be nil")
	}
	if w == nil {
		return nil, errors.New("invalid worker: must not be nil")
	}
	if concurrency == 0 {
		return nil, errors.New("invalid concurrency: must be greater than 0")
	}
	if backfillPriority == 0 || backfillPriority >= concurrency {
		return nil, errors.New(
			"invalid backfill priority: must be greater than 0 and less than concurrency",
		)
	}
	if heightChanCapacity <= 0 {
		return nil, errors.New("invalid height channel capacity: must be greater than 0")
	}
	if maxFailures <= 0 {
		return nil, errors.New("invalid max failures: must be greater than 0")
	}

	return &Manager{
		log:         log,
		state:       s,
		worker:      w,
		workerSem:   semaphore.NewWeighted(int64(concurrency)),
		backfillSem: semaphore.NewWeighted(int64(backfillPriority)),
		heightChan:  make(chan uint64, heightChanCapacity),
		workReady:   make(chan struct{}, 1),
		maxFailures: maxFailures,
		failureChan: make(chan uint64, 1),
	}, nil
}

// SubmitHeight raises the highest watermark to h and queues the height for
// realtime processing. It returns false when the height channel is full; the
// height is not lost, the backfill scan will reach it through the raised
// watermark.
func (m *Manager) SubmitHeight(h uint64) bool {
	if err := m.state.SetHighest(h); err != nil {
		m.log.Debugw("failed to set highest", "height", h, "error", err)
		return false
	}

	select {
	case m.heightChan <- h:
		return true
	default:
		return false
	}
}

// Run executes the scheduling loop until ctx is done or some height fails
// more than maxFailures times. Backfill dispatch is non-blocking and fills
// all capacity it may use before the loop parks on the next event.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		m.dispatchBackfill(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-m.failureChan:
			return fmt.Errorf(
				"max failures exceeded for height %d after %d attempts",
				h, m.state.FailureCount(h),
			)
		case h := <-m.heightChan:
			m.handleRealtimeHeight(ctx, h)
		case <-m.workReady:
			// A worker finished or watermarks changed; rescan.
		}
	}
}

// dispatchBackfill claims unprocessed heights and starts workers until
// either capacity or work runs out.
func (m *Manager) dispatchBackfill(ctx context.Context) {
	for {
		next, ok := m.state.FindNextUnclaimed()
		if !ok {
			return
		}
		if !m.tryAcquireBackfill() {
			return
		}
		if !m.state.TrySetInflight(next) {
			// Lost the race for this height; release and rescan.
			m.backfillSem.Release(1)
			m.workerSem.Release(1)
			continue
		}
		go m.process(ctx, next, true)
	}
}

// handleRealtimeHeight dispatches a fresh tip height if a worker slot is
// free. Realtime work does not consume backfill priority. With no free slot
// the height is dropped; backfill picks it up from the window.
func (m *Manager) handleRealtimeHeight(ctx context.Context, h uint64) {
	if !m.workerSem.TryAcquire(1) {
		return
	}
	if !m.state.TrySetInflight(h) {
		m.workerSem.Release(1)
		return
	}
	go m.process(ctx, h, false)
}

func (m *Manager) process(ctx context.Context, h uint64, isBackfill bool) {
	defer func() {
		if isBackfill {
			m.backfillSem.Release(1)
		}
		m.workerSem.Release(1)
		m.state.UnsetInflight(h)
		m.signalWorkReady()
	}()

	if err := m.worker.Process(ctx, h); err != nil {
		m.log.Warnw("failed processing height", "height", h, "error", err)
		m.handleFailure(h)
		return
	}

	if err := m.state.MarkProcessed(h); err != nil {
		m.log.Warnw("failed to mark processed", "height", h, "error", err)
		m.handleFailure(h)
		return
	}
	// Slide the window if contiguous; no-op otherwise.
	_, _ = m.state.AdvanceLowest()
	m.state.ResetFailures(h)
}

func (m *Manager) handleFailure(h uint64) {
	if m.state.IncrementFailure(h) >= m.maxFailures {
		select {
		case m.failureChan <- h:
		default:
		}
	}
}

// tryAcquireBackfill takes both a backfill permit and a worker permit, or
// neither.
func (m *Manager) tryAcquireBackfill() bool {
	if !m.backfillSem.TryAcquire(1) {
		return false
	}
	if !m.workerSem.TryAcquire(1) {
		m.backfillSem.Release(1)
		return false
	}
	return true
}

func (m *Manager) signalWorkReady() {
	select {
	case m.workReady <- struct{}{}:
	default:
	}
}
