package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

var runFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging",
	},
	&cli.Uint64Flag{
		Name:     "chain-id",
		Aliases:  []string{"C"},
		Usage:    "The chain ID being indexed",
		EnvVars:  []string{"CHAIN_ID"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "rpc-url",
		Aliases:  []string{"r"},
		Usage:    "The HTTP RPC URL to fetch headers from",
		EnvVars:  []string{"RPC_URL"},
		Required: true,
	},
	&cli.Uint64Flag{
		Name:    "start-height",
		Aliases: []string{"s"},
		Usage:   "The start height. If not specified, resumes from the last checkpoint",
		EnvVars: []string{"START_HEIGHT"},
	},
	&cli.Uint64Flag{
		Name:    "concurrency",
		Aliases: []string{"c"},
		Usage:   "The number of concurrent workers",
		EnvVars: []string{"CONCURRENCY"},
		Value:   8,
	},
	&cli.Uint64Flag{
		Name:    "backfill-priority",
		Aliases: []string{"b"},
		Usage:   "How many workers backfill may occupy (must be less than concurrency)",
		EnvVars: []string{"BACKFILL_PRIORITY"},
		Value:   6,
	},
	&cli.IntFlag{
		Name:    "heights-ch-capacity",
		Usage:   "The capacity of the realtime heights channel",
		EnvVars: []string{"HEIGHTS_CH_CAPACITY"},
		Value:   100,
	},
	&cli.IntFlag{
		Name:    "max-failures",
		Aliases: []string{"f"},
		Usage:   "The maximum failures per height before stopping",
		EnvVars: []string{"MAX_FAILURES"},
		Value:   3,
	},
	&cli.Uint64Flag{
		Name:    "fetch-attempts",
		Usage:   "The attempt budget for a single header fetch",
		EnvVars: []string{"FETCH_ATTEMPTS"},
		Value:   5,
	},
	&cli.DurationFlag{
		Name:    "fetch-timeout",
		Usage:   "The per-attempt timeout for a header fetch",
		EnvVars: []string{"FETCH_TIMEOUT"},
		Value:   10 * time.Second,
	},
	&cli.DurationFlag{
		Name:    "poll-interval",
		Usage:   "How often to poll the chain tip",
		EnvVars: []string{"POLL_INTERVAL"},
		Value:   2 * time.Second,
	},
	&cli.DurationFlag{
		Name:    "checkpoint-interval",
		Aliases: []string{"i"},
		Usage:   "The interval between checkpoint writes",
		EnvVars: []string{"CHECKPOINT_INTERVAL"},
		Value:   30 * time.Second,
	},
	&cli.StringFlag{
		Name:    "checkpoint-table",
		Usage:   "The ClickHouse table holding checkpoints",
		EnvVars: []string{"CHECKPOINT_TABLE"},
		Value:   "checkpoints",
	},
	&cli.DurationFlag{
		Name:    "latency-window",
		Usage:   "The moving window over which endpoint latency is averaged",
		EnvVars: []string{"LATENCY_WINDOW"},
		Value:   5 * time.Minute,
	},
	&cli.DurationFlag{
		Name:    "latency-threshold",
		Usage:   "The average latency above which the endpoint counts as degraded",
		EnvVars: []string{"LATENCY_THRESHOLD"},
		Value:   time.Second,
	},
	&cli.Uint64Flag{
		Name:    "max-gap",
		Usage:   "The backlog size above which the gap watchdog warns",
		EnvVars: []string{"MAX_GAP"},
		Value:   10000,
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "The listen address of the metrics server",
		EnvVars: []string{"METRICS_ADDR"},
		Value:   ":9090",
	},
}
