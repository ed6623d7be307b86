// Package store defines the persistence contract for events and crawl runs.
package store

import (
	"context"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// Store persists events and crawl-run summaries. Implementations enforce
// uniqueness of model.Event.Fingerprint.
type Store interface {
	// InsertEvents inserts events in no particular order and assigns IDs to
	// the ones that were stored. Events whose fingerprint already exists are
	// skipped; when any were skipped the error is a *DuplicateKeyError and
	// the returned count still reports the rows inserted.
	InsertEvents(ctx context.Context, events []*model.Event) (int, error)

	// ListEvents returns events ordered by (StartDate, ID) ascending.
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Crawl runs
	RecordCrawlRun(ctx context.Context, run *model.CrawlRun) error
	RecentCrawlRuns(ctx context.Context, limit int) ([]*model.CrawlRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
