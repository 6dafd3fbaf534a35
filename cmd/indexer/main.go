package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Local development convenience; absent .env files are fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "indexer",
		Usage: "Fetch chain headers through a sliding window and publish them to Kafka",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the indexer",
				Flags:  runFlags,
				Action: run,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
