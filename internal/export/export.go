// Package export writes stored events as JSON lines for backups and
// downstream consumers.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// Version identifies the record layout.
const Version = "1"

// batchSize is how many events are read from the store per query.
const batchSize = 500

// Lister reads events in (StartDate, ID) order.
type Lister interface {
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
}

// Header is the first line of an export.
type Header struct {
	Version   string     `json:"version"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Since     *time.Time `json:"since,omitempty"`
}

// Record is one exported event.
type Record struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Event is the API shape of an event plus its fingerprint, so an export can
// be deduplicated on re-import.
type Event struct {
	Fingerprint string `json:"fingerprint"`
	*model.Event
}

// WriteJSONL writes a header line followed by one record per stored event
// starting after since (all events when since is zero). It returns the
// number of events written.
func WriteJSONL(ctx context.Context, l Lister, w io.Writer, since time.Time) (int, error) {
	enc := json.NewEncoder(w)
	h := Header{Version: Version, Type: "header", Timestamp: time.Now().UTC()}
	if !since.IsZero() {
		s := since.UTC()
		h.Since = &s
	}
	if err := enc.Encode(h); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	filter := model.EventFilter{StartAfter: since, Limit: batchSize}
	n := 0
	for {
		batch, err := l.ListEvents(ctx, filter)
		if err != nil {
			return n, fmt.Errorf("list events: %w", err)
		}
		for _, e := range batch {
			if err := enc.Encode(Record{Type: "event", Data: Event{Fingerprint: e.Fingerprint, Event: e}}); err != nil {
				return n, fmt.Errorf("write event %d: %w", e.ID, err)
			}
			n++
		}
		if len(batch) < batchSize {
			return n, nil
		}
		key := batch[len(batch)-1].Key()
		filter.After = &key
	}
}
