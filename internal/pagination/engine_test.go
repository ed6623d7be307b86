package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/store/memory"
)

var today = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, events ...*model.Event) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	if len(events) > 0 {
		if _, err := st.InsertEvents(context.Background(), events); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	e := NewEngine(st, time.UTC)
	e.now = func() time.Time { return today.Add(15 * time.Hour) }
	return e, st
}

func ev(title string, start time.Time) *model.Event {
	return &model.Event{SourceName: "test", StartDate: start, Title: title}
}

func titles(events []*model.Event) string {
	s := ""
	for i, e := range events {
		if i > 0 {
			s += ","
		}
		s += e.Title
	}
	return s
}

func TestList_ThreeEventScenario(t *testing.T) {
	d1 := today.Add(48 * time.Hour)
	d2 := d1.Add(time.Hour)
	a, b, c := ev("A", d1), ev("B", d1), ev("C", d2)
	eng, _ := newEngine(t, a, b, c)
	ctx := context.Background()

	p1, err := eng.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if got := titles(p1.Events); got != "A,B" {
		t.Fatalf("page 1 = %s, want A,B", got)
	}
	if p1.Next != EncodeCursor(b.Key()) {
		t.Fatalf("page 1 next = %q, want cursor of B %q", p1.Next, EncodeCursor(b.Key()))
	}

	p2, err := eng.List(ctx, p1.Next, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := titles(p2.Events); got != "C" {
		t.Fatalf("page 2 = %s, want C", got)
	}
	if p2.Next != EncodeCursor(c.Key()) {
		t.Fatalf("page 2 next = %q, want cursor of C", p2.Next)
	}

	p3, err := eng.List(ctx, p2.Next, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(p3.Events) != 0 || p3.Events == nil {
		t.Fatalf("page 3 = %#v, want empty non-nil", p3.Events)
	}
	if p3.Next != "" {
		t.Fatalf("page 3 next = %q, want empty", p3.Next)
	}
}

func TestList_TieOnStartDate(t *testing.T) {
	d := today.Add(24 * time.Hour)
	first, second := ev("first", d), ev("second", d)
	eng, _ := newEngine(t, first, second)

	page, err := eng.List(context.Background(), EncodeCursor(first.Key()), 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(page.Events); got != "second" {
		t.Fatalf("after first = %s, want second", got)
	}
}

func TestList_DayBoundary(t *testing.T) {
	eng, _ := newEngine(t,
		ev("yesterday-last-ms", today.Add(-time.Millisecond)),
		ev("midnight", today),
		ev("just-after", today.Add(time.Millisecond)),
		ev("tonight", today.Add(20*time.Hour)),
	)

	page, err := eng.List(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(page.Events); got != "just-after,tonight" {
		t.Fatalf("upcoming = %s, want just-after,tonight", got)
	}
}

func TestList_DayBoundaryInZone(t *testing.T) {
	ny := time.FixedZone("EDT", -4*3600)
	st := memory.New()
	// 03:00 UTC on the 16th is still the 15th in New York.
	_, _ = st.InsertEvents(context.Background(), []*model.Event{
		ev("late-15th-local", time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)),
		ev("early-16th-local", time.Date(2026, 10, 16, 5, 0, 0, 0, time.UTC)),
	})
	eng := NewEngine(st, ny)
	eng.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, ny) }

	page, err := eng.List(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(page.Events); got != "early-16th-local" {
		t.Fatalf("upcoming = %s", got)
	}
}

func TestList_CompleteAndOrdered(t *testing.T) {
	var events []*model.Event
	base := today.Add(24 * time.Hour)
	for i := 0; i < 53; i++ {
		// Every third event shares a timestamp with its neighbour.
		events = append(events, ev(fmt.Sprintf("e%02d", i), base.Add(time.Duration(i/3)*time.Minute)))
	}
	eng, st := newEngine(t, events...)

	for _, limit := range []int{1, 2, 7, 20, 100} {
		seen := map[string]bool{}
		var prev *model.Event
		next := ""
		pages := 0
		for {
			page, err := eng.List(context.Background(), next, limit)
			if err != nil {
				t.Fatalf("limit %d: %v", limit, err)
			}
			pages++
			if len(page.Events) == 0 {
				break
			}
			for _, e := range page.Events {
				if seen[e.Title] {
					t.Fatalf("limit %d: %s repeated", limit, e.Title)
				}
				seen[e.Title] = true
				if prev != nil {
					if e.StartDate.Before(prev.StartDate) || (e.StartDate.Equal(prev.StartDate) && e.ID <= prev.ID) {
						t.Fatalf("limit %d: %s out of order after %s", limit, e.Title, prev.Title)
					}
				}
				prev = e
			}
			next = page.Next
			if pages > 100 {
				t.Fatalf("limit %d: pagination did not terminate", limit)
			}
		}
		if len(seen) != st.Len() {
			t.Fatalf("limit %d: saw %d events, want %d", limit, len(seen), st.Len())
		}
	}
}

func TestList_StableUnderConcurrentInsert(t *testing.T) {
	base := today.Add(24 * time.Hour)
	eng, st := newEngine(t, ev("a", base), ev("b", base.Add(time.Minute)), ev("c", base.Add(2*time.Minute)))
	ctx := context.Background()

	p1, _ := eng.List(ctx, "", 2)
	// A new event sorting before the cursor must not shift the next page.
	_, _ = st.InsertEvents(ctx, []*model.Event{ev("early", base.Add(-time.Minute))})

	p2, err := eng.List(ctx, p1.Next, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(p2.Events); got != "c" {
		t.Fatalf("page 2 = %s, want c", got)
	}
}

func TestList_InvalidCursor(t *testing.T) {
	eng, _ := newEngine(t, ev("a", today.Add(time.Hour)))
	page, err := eng.List(context.Background(), "not-a-cursor", 10)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("err = %v, want ErrInvalidCursor", err)
	}
	if page != nil {
		t.Fatalf("page = %+v, want nil", page)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	var events []*model.Event
	for i := 0; i < 120; i++ {
		events = append(events, ev(fmt.Sprint(i), today.Add(time.Duration(i+1)*time.Minute)))
	}
	eng, _ := newEngine(t, events...)

	for _, tc := range []struct {
		limit int
		want  int
	}{
		{0, 1},
		{-5, 1},
		{9999, 100},
		{20, 20},
	} {
		page, err := eng.List(context.Background(), "", tc.limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Events) != tc.want {
			t.Errorf("limit %d: got %d events, want %d", tc.limit, len(page.Events), tc.want)
		}
	}
}

type failingLister struct{ err error }

func (f failingLister) ListEvents(context.Context, model.EventFilter) ([]*model.Event, error) {
	return nil, f.err
}

func TestList_StorageError(t *testing.T) {
	boom := errors.New("db down")
	eng := NewEngine(failingLister{boom}, nil)
	if _, err := eng.List(context.Background(), "", 10); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
