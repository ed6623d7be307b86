package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/store"
)

func ev(title string, start time.Time) *model.Event {
	return &model.Event{SourceName: "test", StartDate: start, Title: title}
}

func TestInsertEvents_Dedup(t *testing.T) {
	s := New()
	ctx := context.Background()
	d := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	n, err := s.InsertEvents(ctx, []*model.Event{ev("a", d), ev("b", d)})
	if err != nil || n != 2 {
		t.Fatalf("first insert = %d, %v", n, err)
	}

	n, err = s.InsertEvents(ctx, []*model.Event{ev("a", d), ev("c", d)})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
	if n != 1 || store.Skipped(err) != 1 {
		t.Fatalf("second insert = %d inserted, %d skipped", n, store.Skipped(err))
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
}

func TestListEvents_Keyset(t *testing.T) {
	s := New()
	ctx := context.Background()
	d1 := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.Add(time.Hour)

	// Insert out of order; listing must still be sorted.
	if _, err := s.InsertEvents(ctx, []*model.Event{ev("c", d2), ev("a", d1), ev("b", d1)}); err != nil {
		t.Fatal(err)
	}

	all, _ := s.ListEvents(ctx, model.EventFilter{StartAfter: d1.Add(-time.Millisecond)})
	if len(all) != 3 || all[0].Title != "a" || all[1].Title != "b" || all[2].Title != "c" {
		t.Fatalf("order = %v", titles(all))
	}

	after := all[0].Key()
	rest, _ := s.ListEvents(ctx, model.EventFilter{After: &after, Limit: 1})
	if len(rest) != 1 || rest[0].Title != "b" {
		t.Fatalf("after a = %v, want [b]", titles(rest))
	}

	none, _ := s.ListEvents(ctx, model.EventFilter{StartAfter: d2})
	if none == nil || len(none) != 0 {
		t.Fatalf("after last = %#v, want empty", none)
	}
}

func TestRecentCrawlRuns(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"cr-1", "cr-2", "cr-3"} {
		_ = s.RecordCrawlRun(ctx, &model.CrawlRun{ID: id})
	}
	runs, _ := s.RecentCrawlRuns(ctx, 2)
	if len(runs) != 2 || runs[0].ID != "cr-3" || runs[1].ID != "cr-2" {
		t.Fatalf("runs = %+v", runs)
	}
}

func titles(events []*model.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}
