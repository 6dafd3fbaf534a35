package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// config collects every run flag in one place so run stays readable.
type config struct {
	verbose           bool
	chainID           uint64
	rpcURL            string
	startHeight       uint64
	concurrency       uint64
	backfillPriority  uint64
	heightsChCapacity int
	maxFailures       int

	fetchAttempts uint64
	fetchTimeout  time.Duration
	pollInterval  time.Duration

	checkpointInterval time.Duration
	checkpointTable    string

	latencyWindow    time.Duration
	latencyThreshold time.Duration
	maxGap           uint64
	metricsAddr      string
}

// validate rejects flag values the wiring cannot accept, so bad input comes
// back as a usage error rather than a crash deep in a component.
func (c config) validate() error {
	if c.fetchAttempts < 1 {
		return fmt.Errorf("fetch-attempts must be at least 1, got %d", c.fetchAttempts)
	}
	if c.fetchTimeout <= 0 {
		return fmt.Errorf("fetch-timeout must be positive, got %s", c.fetchTimeout)
	}
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive, got %s", c.pollInterval)
	}
	if c.checkpointInterval <= 0 {
		return fmt.Errorf("checkpoint-interval must be positive, got %s", c.checkpointInterval)
	}
	if c.latencyWindow <= 0 || c.latencyThreshold <= 0 {
		return fmt.Errorf("latency-window and latency-threshold must be positive, got %s and %s",
			c.latencyWindow, c.latencyThreshold)
	}
	return nil
}

func configFromCLI(c *cli.Context) config {
	return config{
		verbose:           c.Bool("verbose"),
		chainID:           c.Uint64("chain-id"),
		rpcURL:            c.String("rpc-url"),
		startHeight:       c.Uint64("start-height"),
		concurrency:       c.Uint64("concurrency"),
		backfillPriority:  c.Uint64("backfill-priority"),
		heightsChCapacity: c.Int("heights-ch-capacity"),
		maxFailures:       c.Int("max-failures"),

		fetchAttempts: c.Uint64("fetch-attempts"),
		fetchTimeout:  c.Duration("fetch-timeout"),
		pollInterval:  c.Duration("poll-interval"),

		checkpointInterval: c.Duration("checkpoint-interval"),
		checkpointTable:    c.String("checkpoint-table"),

		latencyWindow:    c.Duration("latency-window"),
		latencyThreshold: c.Duration("latency-threshold"),
		maxGap:           c.Uint64("max-gap"),
		metricsAddr:      c.String("metrics-addr"),
	}
}
