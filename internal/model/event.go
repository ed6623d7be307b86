package model

import "time"

// Event is a normalized event listing produced by a source and stored centrally.
// ID and Fingerprint are storage-internal and never serialized to API callers.
type Event struct {
	ID          int64  `json:"-"`
	Fingerprint string `json:"-"`

	SourceName    string         `json:"sourceName"`
	StartDate     time.Time      `json:"startDate"`
	EndDate       *time.Time     `json:"endDate"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Extra         map[string]any `json:"extra"`
	Image         *Image         `json:"image"`
	Location      string         `json:"location"`
	LocationCoord *Coord         `json:"locationCoord"`
}

// Image references an event picture. Width and Height are nil when the
// source does not report dimensions.
type Image struct {
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

// Coord is a [latitude, longitude] pair as reported by the source.
type Coord [2]float64

// Key returns the keyset position of the event in (StartDate, ID) order.
func (e *Event) Key() EventKey {
	return EventKey{StartDate: e.StartDate, ID: e.ID}
}

// Seal normalizes timestamps to UTC millisecond precision and computes the
// fingerprint. An event that already carries a fingerprint keeps it.
func (e *Event) Seal() {
	e.StartDate = truncateMillis(e.StartDate)
	if e.EndDate != nil {
		t := truncateMillis(*e.EndDate)
		e.EndDate = &t
	}
	if e.Fingerprint == "" {
		e.Fingerprint = Fingerprint(e)
	}
}

func truncateMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// IntPtr returns a pointer to n. Handy for Image dimensions.
func IntPtr(n int) *int {
	return &n
}
