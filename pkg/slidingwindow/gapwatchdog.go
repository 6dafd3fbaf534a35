package slidingwindow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartGapWatchdog periodically inspects the window and warns when the
// backlog (highest - lowest) exceeds maxGap. onSample, when non-nil, receives
// every observation so callers can export it as a metric. Blocks until ctx is
// done.
func StartGapWatchdog(
	ctx context.Context,
	log *zap.SugaredLogger,
	s *State,
	interval time.Duration,
	maxGap uint64,
	onSample func(lowest, highest, gap uint64),
) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lowest, highest := s.Window()
			// When backfill completes, lowest sits exactly one past highest.
			// Anything further apart indicates inconsistent state.
			var gap uint64
			switch {
			case highest >= lowest:
				gap = highest - lowest
			case lowest == highest+1:
				gap = 0
			default:
				gap = 0
				log.Warnw("state inconsistency in gap watchdog",
					"highest", highest, "lowest", lowest)
			}
			if onSample != nil {
				onSample(lowest, highest, gap)
			}
			if gap > maxGap {
				log.Warnw("backlog gap too large",
					"gap", gap, "highest", highest, "lowest", lowest)
			}
		}
	}
}
