// Package events carries crawl notifications over NATS.
package events

import (
	"context"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// Event topic constants
const (
	TopicCrawlCompleted = "osevents.crawl.completed"
	TopicSourceFailed   = "osevents.source.failed"

	// Consumed by the serve command to trigger crawls from other services.
	TopicCrawlRequested = "osevents.crawl.requested"

	// TopicAll matches every osevents subject.
	TopicAll = "osevents.>"
)

// Event types

type CrawlCompleted struct {
	Run *model.CrawlRun `json:"run"`
}

type SourceFailed struct {
	RunID  string `json:"run_id"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

type CrawlRequested struct {
	Crawler string `json:"crawler"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
