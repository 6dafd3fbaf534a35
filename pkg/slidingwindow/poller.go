package slidingwindow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/pkg/retry"
)

// HeightSource reports the current chain tip height.
type HeightSource interface {
	LatestHeight(ctx context.Context) (uint64, error)
}

// Poller feeds the manager with fresh tip heights by polling a HeightSource.
// Transient source failures are retried with backoff inside a single poll
// cycle; the poller itself never gives up until its context is canceled.
type Poller struct {
	log      *zap.SugaredLogger
	source   HeightSource
	interval time.Duration
	fetchTip *retry.Runner[uint64]
}

// NewPoller creates a Poller that asks source for the tip every interval.
// Each poll is bounded by pollTimeout per attempt and retried up to
// maxAttempts times.
func NewPoller(
	log *zap.SugaredLogger,
	source HeightSource,
	interval, pollTimeout time.Duration,
	maxAttempts uint64,
) *Poller {
	fetchTip := retry.Retry[uint64]("poll chain tip", log).
		OnError().
		LogAfter(2).
		Limit(maxAttempts).
		Timeout(pollTimeout)

	return &Poller{
		log:      log,
		source:   source,
		interval: interval,
		fetchTip: fetchTip,
	}
}

// Run polls until ctx is done and submits every new tip height to the
// manager. A poll cycle that exhausts its retries is logged and skipped; the
// next tick tries again. Run is BLOCKING and always returns ctx.Err().
func (p *Poller) Run(ctx context.Context, manager *Manager) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	var lastSeen uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			tip, err := p.fetchTip.Run(ctx, func(ctx context.Context) (uint64, error) {
				return p.source.LatestHeight(ctx)
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warnw("failed to poll chain tip", "error", err)
				continue
			}
			if tip <= lastSeen {
				continue
			}
			lastSeen = tip
			p.log.Debugw("observed new chain tip", "height", tip)
			if !manager.SubmitHeight(tip) {
				p.log.Debugw("dropped realtime height; queued for backfill", "height", tip)
			}
		}
	}
}
