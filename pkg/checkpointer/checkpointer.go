// Package checkpointer periodically persists the sliding window's lowest
// unprocessed height so ingestion can resume where it left off after a
// restart.
package checkpointer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/pkg/retry"
	"github.com/graphops/chain-indexer/pkg/slidingwindow"
)

// Checkpointer abstracts checkpoint persistence across data stores.
// Checkpoints track the lowest unprocessed block height per chain.
type Checkpointer interface {
	// Initialize ensures the underlying storage is ready (tables, schemas).
	// Idempotent.
	Initialize(ctx context.Context) error

	// Write atomically persists a checkpoint for the chain, stamped with the
	// current Unix timestamp in seconds.
	Write(ctx context.Context, chainID uint64, lowestUnprocessed uint64) error

	// Read retrieves the latest checkpoint for the chain. exists is false
	// when the chain has never been checkpointed.
	Read(ctx context.Context, chainID uint64) (lowestUnprocessed uint64, exists bool, err error)
}

// Start writes the window's lowest watermark every cfg.Interval until ctx is
// done. Each write gets a per-attempt timeout and a bounded retry budget; a
// write that exhausts its budget is fatal and stops the loop.
//
// Returns nil on context cancellation (graceful shutdown).
func Start(
	ctx context.Context,
	log *zap.SugaredLogger,
	s *slidingwindow.State,
	cp Checkpointer,
	cfg Config,
	chainID uint64,
) error {
	write := retry.Retry[struct{}]("write checkpoint", log).
		OnError().
		LogAfter(1).
		Limit(cfg.MaxAttempts).
		Timeout(cfg.WriteTimeout).
		WithBackoff(retry.Backoff{
			Base:     cfg.RetryBase,
			Growth:   2,
			MaxDelay: cfg.RetryMax,
		})

	t := time.NewTicker(cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-t.C:
			lowest := s.GetLowest()
			_, err := write.Run(ctx, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, cp.Write(ctx, chainID, lowest)
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf(
					"failed to write checkpoint (lowest: %d) after %d attempts: %w",
					lowest, cfg.MaxAttempts, err,
				)
			}
			log.Debugw("checkpoint written", "chain_id", chainID, "lowest", lowest)
		}
	}
}
