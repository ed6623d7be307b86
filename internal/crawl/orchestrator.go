// Package crawl runs source adapters and persists what they find.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/osevents/internal/events"
	"github.com/alfredjeanlab/osevents/internal/idgen"
	"github.com/alfredjeanlab/osevents/internal/images"
	"github.com/alfredjeanlab/osevents/internal/metrics"
	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/sources"
	"github.com/alfredjeanlab/osevents/internal/store"
)

// AdapterError is one source's failure within a run, either while
// crawling or while persisting.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Runner starts crawl runs. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, selector string) (*model.CrawlRun, error)
}

// rehostWorkers bounds concurrent image downloads per source.
const rehostWorkers = 4

// Orchestrator fans a crawl out over the selected sources. Each source is
// persisted on its own as soon as it finishes, so one failing provider
// never discards another's events.
type Orchestrator struct {
	registry  *sources.Registry
	store     store.Store
	rehoster  images.Rehoster
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

var _ Runner = (*Orchestrator)(nil)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRehoster enables image rehosting for sources that opt in.
func WithRehoster(r images.Rehoster) Option {
	return func(o *Orchestrator) { o.rehoster = r }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(reg *sources.Registry, st store.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		registry:  reg,
		store:     st,
		publisher: &events.NoopPublisher{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run crawls the sources matching selector ("all", "" or a source name).
// An unknown selector runs nothing and is not an error. The returned run
// is always non-nil when err is nil or an AdapterError join; the error
// joins one *AdapterError per failed source.
func (o *Orchestrator) Run(ctx context.Context, selector string) (*model.CrawlRun, error) {
	runID, err := idgen.RunID()
	if err != nil {
		return nil, err
	}
	sel := strings.ToLower(strings.TrimSpace(selector))
	if sel == "" {
		sel = sources.SelectAll
	}
	run := &model.CrawlRun{
		ID:        runID,
		Selector:  sel,
		StartedAt: o.now().UTC(),
		Sources:   []*model.SourceResult{},
	}
	logger := o.logger.With("run_id", runID)

	selected := o.registry.Select(sel)
	if len(selected) == 0 {
		logger.Warn("no sources selected, ending early", "selector", sel)
		run.FinishedAt = o.now().UTC()
		return run, nil
	}

	// The cache lives exactly as long as this run.
	cache := images.NewCache()

	results := make([]*model.SourceResult, len(selected))
	errs := make([]error, len(selected))
	var wg sync.WaitGroup
	for i, src := range selected {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = o.runSource(ctx, logger, src, cache)
		}()
	}
	wg.Wait()

	run.Sources = results
	run.FinishedAt = o.now().UTC()
	o.finish(ctx, logger, run)

	return run, errors.Join(errs...)
}

func (o *Orchestrator) runSource(ctx context.Context, logger *slog.Logger, src sources.Source, cache *images.Cache) (res *model.SourceResult, err error) {
	name := src.Name()
	logger = logger.With("source", name)
	res = &model.SourceResult{Source: name}

	defer func() {
		if r := recover(); r != nil {
			err = &AdapterError{Source: name, Err: fmt.Errorf("panic: %v", r)}
			res.Error = err.Error()
			logger.Error("source panicked", "panic", r)
		}
	}()

	found, err := src.Crawl(ctx)
	if err != nil {
		res.Error = err.Error()
		logger.Error("source crawl failed", "err", err)
		return res, &AdapterError{Source: name, Err: err}
	}
	res.Fetched = len(found)
	// Fingerprints cover the source's own image URL, not the rehosted one.
	for _, e := range found {
		e.Seal()
	}

	if o.rehoster != nil {
		if rh, ok := src.(sources.ImageRehosting); ok && rh.RehostImages() {
			res.ImagesRehosted = o.rehostImages(ctx, logger, name, found, cache)
		}
	}

	n, err := o.store.InsertEvents(ctx, found)
	res.Inserted = n
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateKey):
		res.Duplicates = len(found) - n
	default:
		res.Error = err.Error()
		logger.Error("persisting events failed", "err", err)
		return res, &AdapterError{Source: name, Err: fmt.Errorf("persist events: %w", err)}
	}

	logger.Info("source crawled",
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"images_rehosted", res.ImagesRehosted,
	)
	return res, nil
}

// rehostImages rewrites image URLs in place and returns how many events
// now point at a rehosted copy. Failed images keep their original URL.
func (o *Orchestrator) rehostImages(ctx context.Context, logger *slog.Logger, source string, evs []*model.Event, cache *images.Cache) int {
	var (
		mu       sync.Mutex
		rehosted int
		wg       sync.WaitGroup
		sem      = make(chan struct{}, rehostWorkers)
	)
	for _, e := range evs {
		if e.Image == nil || e.Image.URL == "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		orig := e.Image.URL
		go func() {
			defer func() {
				if r := recover(); r != nil {
					o.metrics.ImageRehosted(metrics.ImageError)
					logger.Error("image rehost panicked, keeping source url", "url", orig, "panic", r)
				}
				<-sem
				wg.Done()
			}()

			url, shared, err := cache.Do(ctx, orig, func(ctx context.Context) (string, error) {
				return o.rehoster.Rehost(ctx, source, orig)
			})
			switch {
			case err != nil:
				if !shared {
					o.metrics.ImageRehosted(metrics.ImageError)
					logger.Warn("image rehost failed, keeping source url", "url", orig, "err", err)
				}
				return
			case shared:
				o.metrics.ImageRehosted(metrics.ImageCached)
			default:
				o.metrics.ImageRehosted(metrics.ImageOK)
			}

			mu.Lock()
			e.Image.URL = url
			rehosted++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return rehosted
}

// finish records the run and tells the rest of the system about it.
// Failures here are logged; the events are already stored.
func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, run *model.CrawlRun) {
	if err := o.store.RecordCrawlRun(ctx, run); err != nil {
		logger.Error("recording crawl run failed", "err", err)
	}

	for _, r := range run.Sources {
		o.metrics.ObserveSource(r)
		if r.Error == "" {
			continue
		}
		if err := o.publisher.Publish(ctx, events.TopicSourceFailed, events.SourceFailed{
			RunID:  run.ID,
			Source: r.Source,
			Error:  r.Error,
		}); err != nil {
			logger.Warn("publishing source failure failed", "source", r.Source, "err", err)
		}
	}
	if err := o.publisher.Publish(ctx, events.TopicCrawlCompleted, events.CrawlCompleted{Run: run}); err != nil {
		logger.Warn("publishing crawl completion failed", "err", err)
	}

	elapsed := run.FinishedAt.Sub(run.StartedAt)
	o.metrics.ObserveCrawl(elapsed, run.FinishedAt)

	fetched, inserted := run.Totals()
	logger.Info("crawl finished",
		"selector", run.Selector,
		"sources", len(run.Sources),
		"fetched", fetched,
		"inserted", inserted,
		"failed", run.Failed(),
		"elapsed", elapsed,
	)
}
