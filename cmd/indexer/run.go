package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/graphops/chain-indexer/internal/chainclient"
	"github.com/graphops/chain-indexer/internal/fetcher"
	"github.com/graphops/chain-indexer/pkg/checkpointer"
	"github.com/graphops/chain-indexer/pkg/clickhouse"
	"github.com/graphops/chain-indexer/pkg/data/clickhouse/checkpoint"
	"github.com/graphops/chain-indexer/pkg/health"
	"github.com/graphops/chain-indexer/pkg/kafka"
	"github.com/graphops/chain-indexer/pkg/metrics"
	"github.com/graphops/chain-indexer/pkg/queue"
	"github.com/graphops/chain-indexer/pkg/retry"
	"github.com/graphops/chain-indexer/pkg/slidingwindow"
	"github.com/graphops/chain-indexer/pkg/utils"
)

const (
	latencyBinSize      = time.Second
	watchInterval       = 10 * time.Second
	flushTimeoutOnClose = 15 * time.Second
)

func run(c *cli.Context) error {
	cfg := configFromCLI(c)
	if err := cfg.validate(); err != nil {
		return err
	}

	sugar, err := utils.NewSugaredLogger("indexer", cfg.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush

	sugar.Infow("config",
		"chainID", cfg.chainID,
		"rpcURL", cfg.rpcURL,
		"startHeight", cfg.startHeight,
		"concurrency", cfg.concurrency,
		"backfillPriority", cfg.backfillPriority,
		"maxFailures", cfg.maxFailures,
		"fetchAttempts", cfg.fetchAttempts,
		"fetchTimeout", cfg.fetchTimeout,
		"pollInterval", cfg.pollInterval,
		"checkpointInterval", cfg.checkpointInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	latency, err := health.NewMonitor(cfg.latencyWindow, latencyBinSize, cfg.latencyThreshold)
	if err != nil {
		return fmt.Errorf("failed to create latency monitor: %w", err)
	}

	// Readiness tracks the RPC endpoint: a degraded endpoint means the
	// indexer is up but not keeping pace.
	metricsServer := metrics.NewServer(cfg.metricsAddr, registry, func() bool {
		return !latency.Degraded()
	})

	client := chainclient.NewRPCClient(cfg.rpcURL, cfg.chainID, sugar)

	// The tip must be reachable before anything else is worth starting.
	tip, err := retry.Retry[uint64]("fetch chain tip", sugar).
		OnError().
		LogAfter(2).
		Limit(cfg.fetchAttempts).
		Timeout(cfg.fetchTimeout).
		Run(ctx, func(ctx context.Context) (uint64, error) {
			return client.LatestHeight(ctx)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch chain tip: %w", err)
	}
	sugar.Infof("chain tip: %d", tip)

	chCfg, err := clickhouse.Load()
	if err != nil {
		return err
	}
	chClient, err := clickhouse.New(chCfg, sugar)
	if err != nil {
		return fmt.Errorf("failed to create clickhouse client: %w", err)
	}
	defer chClient.Close() //nolint:errcheck // close errors at shutdown are not actionable

	repo, err := checkpoint.NewRepository(chClient, chCfg.Cluster, chCfg.Database, cfg.checkpointTable)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint repository: %w", err)
	}

	start := cfg.startHeight
	if start == 0 {
		lowest, exists, err := repo.Read(ctx, cfg.chainID)
		if err != nil {
			return fmt.Errorf("failed to read checkpoint: %w", err)
		}
		if exists {
			start = lowest
			sugar.Infof("resuming from checkpoint: %d", start)
		} else {
			sugar.Info("no checkpoint found, starting from height 0")
		}
	}
	if start > tip {
		return fmt.Errorf("start height %d is above the chain tip %d", start, tip)
	}

	kafkaCfg, err := kafka.LoadProducerConfig()
	if err != nil {
		return err
	}
	publisher, err := queue.NewKafkaPublisher(ctx, kafkaCfg.ConfigMap(), sugar)
	if err != nil {
		return fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), flushTimeoutOnClose)
		defer cancel()
		publisher.Close(closeCtx)
	}()

	w := fetcher.New(sugar, client, publisher, latency, m, fetcher.Config{
		Topic:        kafkaCfg.Topic,
		MaxAttempts:  cfg.fetchAttempts,
		FetchTimeout: cfg.fetchTimeout,
	})

	state, err := slidingwindow.NewState(start, tip)
	if err != nil {
		return fmt.Errorf("failed to create state: %w", err)
	}
	manager, err := slidingwindow.NewManager(
		sugar, state, w,
		cfg.concurrency, cfg.backfillPriority,
		cfg.heightsChCapacity, cfg.maxFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	poller := slidingwindow.NewPoller(sugar, client, cfg.pollInterval, cfg.fetchTimeout, cfg.fetchAttempts)

	serverErrCh := metricsServer.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		return poller.Run(gctx, manager)
	})
	g.Go(func() error {
		cpCfg := checkpointer.DefaultConfig()
		cpCfg.Interval = cfg.checkpointInterval
		return checkpointer.Start(gctx, sugar, state, repo, cpCfg, cfg.chainID)
	})
	g.Go(func() error {
		health.Watch(gctx, sugar, latency, watchInterval, m.SetEndpointHealth)
		return gctx.Err()
	})
	g.Go(func() error {
		slidingwindow.StartGapWatchdog(gctx, sugar, state, watchInterval, cfg.maxGap,
			func(lowest, highest, gap uint64) {
				m.UpdateWindow(lowest, highest, gap, state.ProcessedCount())
			})
		return gctx.Err()
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case err := <-publisher.Errors():
			return err
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		case err := <-serverErrCh:
			return err
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Info("exiting due to context cancellation")
		return nil
	}
	if err != nil {
		sugar.Errorw("run failed", "error", err)
		return err
	}

	sugar.Info("shutting down")
	return nil
}
