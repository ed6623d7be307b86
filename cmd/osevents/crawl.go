package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/client"
	"github.com/alfredjeanlab/osevents/internal/events"
	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/sources"
	"github.com/alfredjeanlab/osevents/internal/store"
	"github.com/alfredjeanlab/osevents/internal/store/memory"
	"github.com/alfredjeanlab/osevents/internal/store/postgres"
)

var (
	crawlSelector string
	crawlDryRun   bool
	crawlRemote   bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl once",
	Long: `Run a crawl once and print what each source contributed.

By default the crawl runs in this process against OSEVENTS_DATABASE_URL.
--dry-run keeps results in memory and skips image rehosting and events.
--remote asks a running server to crawl instead.`,
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			run *model.CrawlRun
			err error
		)
		if crawlRemote {
			run, err = eventsClient.TriggerCrawl(ctx, crawlSelector)
			if apiErr := (*client.APIError)(nil); errors.As(err, &apiErr) && apiErr.RunID != "" {
				return fmt.Errorf("crawl %s failed on the server; see its logs", apiErr.RunID)
			}
		} else {
			run, err = crawlLocal(ctx, slog.Default())
		}
		if run == nil {
			return err
		}

		if jsonOutput {
			printJSON(os.Stdout, run)
		} else {
			printCrawlRun(os.Stdout, run)
		}
		if err != nil {
			return fmt.Errorf("%d of %d sources failed", countFailed(run), len(run.Sources))
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSelector, "crawler", sources.SelectAll, `source to crawl, or "all"`)
	crawlCmd.Flags().BoolVar(&crawlDryRun, "dry-run", false, "crawl without a database, keeping results in memory")
	crawlCmd.Flags().BoolVar(&crawlRemote, "remote", false, "trigger the crawl on the server at --http-url")
	crawlCmd.MarkFlagsMutuallyExclusive("dry-run", "remote")
}

func crawlLocal(ctx context.Context, logger *slog.Logger) (*model.CrawlRun, error) {
	var (
		st        store.Store
		publisher events.Publisher = &events.NoopPublisher{}
	)
	if crawlDryRun {
		st = memory.New()
	} else {
		if err := cfg.RequireDatabaseURL(); err != nil {
			return nil, err
		}
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = pg
		bus, err := newBus(cfg, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		if bus != nil {
			publisher = bus
		}
	}
	defer st.Close()
	defer publisher.Close()

	orch, err := newOrchestrator(ctx, cfg, newRegistry(cfg), st, publisher, nil, logger, !crawlDryRun)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, crawlSelector)
}

func countFailed(run *model.CrawlRun) int {
	n := 0
	for _, r := range run.Sources {
		if r.Error != "" {
			n++
		}
	}
	return n
}
