// Package fetcher implements the sliding window worker: fetch one header,
// publish it to the queue.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/graphops/chain-indexer/internal/chainclient"
	"github.com/graphops/chain-indexer/internal/types"
	"github.com/graphops/chain-indexer/pkg/health"
	"github.com/graphops/chain-indexer/pkg/metrics"
	"github.com/graphops/chain-indexer/pkg/queue"
	"github.com/graphops/chain-indexer/pkg/retry"
	"github.com/graphops/chain-indexer/pkg/slidingwindow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const opFetchHeader = "fetch header"

// Config bounds a single header fetch.
type Config struct {
	Topic        string
	MaxAttempts  uint64
	FetchTimeout time.Duration
}

// Fetcher fetches headers with retries and publishes them. A missing block
// is terminal: the height was never produced and retrying cannot help, so
// the error surfaces to the manager immediately.
type Fetcher struct {
	log       *zap.SugaredLogger
	client    chainclient.ChainClient
	publisher queue.Publisher
	latency   *health.Monitor
	metrics   *metrics.Metrics
	topic     string
	fetch     *retry.Runner[*types.Header]
}

var _ slidingwindow.Worker = (*Fetcher)(nil)

// New creates a Fetcher. latency and m may be nil when health tracking or
// metrics are disabled.
func New(
	log *zap.SugaredLogger,
	client chainclient.ChainClient,
	publisher queue.Publisher,
	latency *health.Monitor,
	m *metrics.Metrics,
	cfg Config,
) *Fetcher {
	fetch := retry.Retry[*types.Header](opFetchHeader, log).
		When(func(_ *types.Header, err error) bool {
			return err != nil && !errors.Is(err, chainclient.ErrBlockNotFound)
		}).
		LogAfter(2).
		Limit(cfg.MaxAttempts).
		Timeout(cfg.FetchTimeout)

	return &Fetcher{
		log:       log,
		client:    client,
		publisher: publisher,
		latency:   latency,
		metrics:   m,
		topic:     cfg.Topic,
		fetch:     fetch,
	}
}

// Process fetches the header at the given height and publishes it.
func (f *Fetcher) Process(ctx context.Context, height uint64) error {
	start := time.Now()
	header, err := f.fetch.Run(ctx, func(ctx context.Context) (*types.Header, error) {
		attemptStart := time.Now()
		h, err := f.client.HeaderByNumber(ctx, height)
		if f.latency != nil {
			f.latency.Observe(time.Since(attemptStart))
		}
		if err != nil {
			f.metrics.RetryAttempt(opFetchHeader, metrics.OutcomeFailure)
		} else {
			f.metrics.RetryAttempt(opFetchHeader, metrics.OutcomeSuccess)
		}
		return h, err
	})
	if err != nil {
		if errors.Is(err, retry.ErrTimeout) {
			f.metrics.RetryAttempt(opFetchHeader, metrics.OutcomeTimeout)
		}
		if !errors.Is(err, chainclient.ErrBlockNotFound) {
			f.metrics.RetryExhausted(opFetchHeader)
		}
		f.metrics.IncError(metrics.ErrTypeFetch)
		return fmt.Errorf("fetch header %d: %w", height, err)
	}
	f.metrics.ObserveFetch(time.Since(start))

	payload, err := json.Marshal(header)
	if err != nil {
		f.metrics.IncError(metrics.ErrTypeEncode)
		return fmt.Errorf("encode header %d: %w", height, err)
	}

	msg := queue.Message{
		Topic: f.topic,
		Key:   []byte(strconv.FormatUint(height, 10)),
		Value: payload,
	}
	if err := f.publisher.Publish(ctx, msg); err != nil {
		f.metrics.IncError(metrics.ErrTypePublish)
		return fmt.Errorf("publish header %d: %w", height, err)
	}
	f.metrics.HeaderPublished()

	f.log.Debugw("header published",
		"height", height,
		"hash", header.Hash,
		"elapsed", time.Since(start),
	)
	return nil
}
