package model

import "time"

// EventKey is a position in the (StartDate, ID) total order of stored events.
type EventKey struct {
	StartDate time.Time
	ID        int64
}

// EventFilter holds criteria for a keyset-paginated event query.
// When After is set it takes precedence over StartAfter.
type EventFilter struct {
	StartAfter time.Time // exclusive lower bound on StartDate
	After      *EventKey // exclusive lower bound on (StartDate, ID)
	Limit      int
}
