package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/pagination"
)

var (
	listLimit int
	listNext  string
	listAll   bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List upcoming events",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if listAll {
			var all []*model.Event
			err := eventsClient.ListAllEvents(ctx, listLimit, func(page []*model.Event) error {
				all = append(all, page...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("listing events: %w", err)
			}
			if jsonOutput {
				printJSON(os.Stdout, nonNil(all))
			} else {
				printEventTable(os.Stdout, all, cfg.Timezone)
			}
			return nil
		}

		page, err := eventsClient.ListEvents(ctx, listNext, listLimit)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if jsonOutput {
			printJSON(os.Stdout, page.Events)
			return nil
		}
		printEventTable(os.Stdout, page.Events, cfg.Timezone)
		if page.Next != "" && len(page.Events) > 0 {
			fmt.Fprintf(os.Stderr, "\nnext page: osevents list --next %s\n", page.Next)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", pagination.DefaultLimit, "events per page (1-100)")
	listCmd.Flags().StringVar(&listNext, "next", "", "cursor from a previous page")
	listCmd.Flags().BoolVar(&listAll, "all", false, "follow cursors to the last page")
	listCmd.MarkFlagsMutuallyExclusive("next", "all")
}

func nonNil(evs []*model.Event) []*model.Event {
	if evs == nil {
		return []*model.Event{}
	}
	return evs
}
