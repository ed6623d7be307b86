package pagination

import (
	"context"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// EventLister is the slice of store.Store the engine needs.
type EventLister interface {
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
}

// Page is one page of results. Next is empty at the end of the results.
type Page struct {
	Events []*model.Event
	Next   string
}

// Engine turns (cursor, limit) requests into keyset queries.
type Engine struct {
	store EventLister
	loc   *time.Location
	now   func() time.Time
}

// NewEngine returns an engine whose "upcoming" window starts at midnight
// in loc. A nil loc means UTC.
func NewEngine(store EventLister, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, loc: loc, now: time.Now}
}

// List returns the page after next, or upcoming events from the start of
// today when next is empty. Errors from a bad cursor wrap ErrInvalidCursor.
func (e *Engine) List(ctx context.Context, next string, limit int) (*Page, error) {
	filter := model.EventFilter{Limit: ClampLimit(limit)}
	if next != "" {
		key, err := DecodeCursor(next)
		if err != nil {
			return nil, err
		}
		filter.After = &key
	} else {
		filter.StartAfter = e.startOfToday()
	}

	events, err := e.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*model.Event{}
	}

	page := &Page{Events: events}
	if len(events) > 0 {
		page.Next = EncodeCursor(events[len(events)-1].Key())
	}
	return page, nil
}

func (e *Engine) startOfToday() time.Time {
	now := e.now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
}
