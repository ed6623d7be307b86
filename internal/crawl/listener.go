package crawl

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/osevents/internal/events"
)

// Listener runs crawls requested over the message bus. Requests are
// handled one at a time in arrival order.
type Listener struct {
	sub    events.Subscriber
	runner Runner
	logger *slog.Logger

	cancel context.CancelFunc
	unsub  func()
	wg     sync.WaitGroup
}

func NewListener(sub events.Subscriber, r Runner, logger *slog.Logger) *Listener {
	return &Listener{sub: sub, runner: r, logger: logger}
}

// Start subscribes to crawl requests and begins handling them.
func (l *Listener) Start() error {
	ch, unsub, err := l.sub.Subscribe(events.TopicCrawlRequested)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.unsub = unsub

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-ch:
				if !ok {
					return
				}
				l.handle(ctx, data)
			}
		}
	}()
	return nil
}

// Stop unsubscribes and waits for an in-flight crawl to return.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.unsub != nil {
		l.unsub()
	}
	l.wg.Wait()
}

func (l *Listener) handle(ctx context.Context, data []byte) {
	var req events.CrawlRequested
	if err := json.Unmarshal(data, &req); err != nil {
		l.logger.Warn("ignoring malformed crawl request", "err", err)
		return
	}
	run, err := l.runner.Run(ctx, req.Crawler)
	if run == nil {
		l.logger.Error("requested crawl failed to start", "crawler", req.Crawler, "err", err)
		return
	}
	if err != nil {
		l.logger.Warn("requested crawl finished with errors", "run_id", run.ID, "crawler", req.Crawler, "err", err)
		return
	}
	l.logger.Info("requested crawl completed", "run_id", run.ID, "crawler", req.Crawler)
}
