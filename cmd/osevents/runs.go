package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "Show recent crawl runs",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := eventsClient.ListCrawlRuns(context.Background(), runsLimit)
		if err != nil {
			return fmt.Errorf("listing crawl runs: %w", err)
		}
		if jsonOutput {
			printJSON(os.Stdout, runs)
			return nil
		}
		printRunsTable(os.Stdout, runs, cfg.Timezone)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
}
