package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/osevents/internal/config"
	"github.com/alfredjeanlab/osevents/internal/crawl"
	"github.com/alfredjeanlab/osevents/internal/events"
	"github.com/alfredjeanlab/osevents/internal/images"
	"github.com/alfredjeanlab/osevents/internal/metrics"
	"github.com/alfredjeanlab/osevents/internal/sources"
	"github.com/alfredjeanlab/osevents/internal/store"
)

// newRegistry builds the enabled source adapters from config.
func newRegistry(c *config.Config) *sources.Registry {
	return sources.Builtin(c.SourceSettings(), sources.Options{
		Client:   sources.NewHTTPClient(c.FetchTimeout),
		Location: c.SourceTimezone,
	})
}

// newBus connects to NATS when configured. A nil bus means events are
// disabled.
func newBus(c *config.Config, logger *slog.Logger) (*events.Bus, error) {
	if c.NATSURL == "" {
		logger.Info("events disabled (OSEVENTS_NATS_URL not set)")
		return nil, nil
	}
	bus, err := events.Connect(c.NATSURL, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("events enabled", "nats_url", c.NATSURL)
	return bus, nil
}

// newOrchestrator wires the crawl pipeline. Images are rehosted only when
// rehost is set and a bucket is configured.
func newOrchestrator(ctx context.Context, c *config.Config, reg *sources.Registry, st store.Store, pub events.Publisher, m *metrics.Metrics, logger *slog.Logger, rehost bool) (*crawl.Orchestrator, error) {
	opts := []crawl.Option{crawl.WithPublisher(pub), crawl.WithMetrics(m)}

	if rehost && c.RehostEnabled() {
		up, err := images.NewS3Uploader(ctx, c.ImageBucket, c.ImageRegion, c.ImageEndpoint)
		if err != nil {
			return nil, fmt.Errorf("creating image uploader: %w", err)
		}
		rh := images.NewHTTPRehoster(sources.NewHTTPClient(c.FetchTimeout), up, c.ImageBaseURL)
		opts = append(opts, crawl.WithRehoster(rh))
		logger.Info("image rehosting enabled", "bucket", c.ImageBucket, "base_url", c.ImageBaseURL)
	}

	return crawl.NewOrchestrator(reg, st, logger, opts...), nil
}
