// Package client provides an HTTP/JSON client for the osevents API.
package client

import (
	"context"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// EventsClient is what the CLI uses to talk to a running server.
type EventsClient interface {
	ListEvents(ctx context.Context, next string, limit int) (*EventPage, error)
	ListAllEvents(ctx context.Context, limit int, fn func([]*model.Event) error) error
	TriggerCrawl(ctx context.Context, crawler string) (*model.CrawlRun, error)
	ListCrawlRuns(ctx context.Context, limit int) ([]*model.CrawlRun, error)
	Health(ctx context.Context) (string, error)
	StreamCrawl(ctx context.Context, topics []string, fn func(Notification) error) error
	Close() error
}

var _ EventsClient = (*HTTPClient)(nil)

// EventPage is one page of GET /v1/events. Next is empty when the server
// sent no cursor.
type EventPage struct {
	Events []*model.Event
	Next   string
}
