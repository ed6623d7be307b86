package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/client"
)

var watchTopics []string

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow crawl notifications from a running server",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err := eventsClient.StreamCrawl(ctx, watchTopics, func(n client.Notification) error {
			if jsonOutput {
				fmt.Fprintf(os.Stdout, "%s\n", n.Data)
				return nil
			}
			printNotification(os.Stdout, n, cfg.Timezone)
			return nil
		})
		if err != nil {
			return fmt.Errorf("watching crawls: %w", err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchTopics, "topic", nil, "topic pattern to follow, e.g. osevents.source.* (repeatable)")
}
