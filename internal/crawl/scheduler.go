package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/osevents/internal/sources"
)

// Scheduler crawls every source on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that triggers a full crawl every interval.
func NewScheduler(r Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   r,
		interval: interval,
		logger:   logger,
	}
}

// Start runs an initial crawl immediately, then one on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current crawl (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.crawlOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.crawlOnce(ctx)
		}
	}
}

func (s *Scheduler) crawlOnce(ctx context.Context) {
	run, err := s.runner.Run(ctx, sources.SelectAll)
	if run == nil {
		s.logger.Error("scheduled crawl failed to start", "err", err)
		return
	}
	if err != nil {
		s.logger.Warn("scheduled crawl finished with errors", "run_id", run.ID, "err", err)
		return
	}
	s.logger.Debug("scheduled crawl completed", "run_id", run.ID)
}
