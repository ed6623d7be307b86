// Package memory is an in-process store.Store used for dry runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/store"
)

// Store keeps events in (StartDate, ID) order behind a mutex.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	events []*model.Event
	byFP   map[string]struct{}
	runs   []*model.CrawlRun
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{byFP: make(map[string]struct{})}
}

func (s *Store) InsertEvents(_ context.Context, events []*model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range events {
		e.Seal()
		if _, dup := s.byFP[e.Fingerprint]; dup {
			continue
		}
		s.nextID++
		e.ID = s.nextID
		cp := *e
		s.byFP[e.Fingerprint] = struct{}{}
		s.events = append(s.events, &cp)
		inserted++
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		return less(s.events[i].Key(), s.events[j].Key())
	})

	if skipped := len(events) - inserted; skipped > 0 {
		return inserted, &store.DuplicateKeyError{Skipped: skipped}
	}
	return inserted, nil
}

func (s *Store) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Event{}
	for _, e := range s.events {
		if filter.After != nil {
			if !less(*filter.After, e.Key()) {
				continue
			}
		} else if !e.StartDate.After(filter.StartAfter) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) RecordCrawlRun(_ context.Context, run *model.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *Store) RecentCrawlRuns(_ context.Context, limit int) ([]*model.CrawlRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	out := make([]*model.CrawlRun, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func less(a, b model.EventKey) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.Before(b.StartDate)
	}
	return a.ID < b.ID
}
