package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

const (
	NewHopeWineryName    = "newhopewinery"
	newHopeWineryBaseURL = "http://newhopewinery.com"
)

// NewHopeWinery crawls the winery's calendar plugin, which only answers
// JSONP.
type NewHopeWinery struct {
	baseURL string
	rehost  bool
	client  *http.Client
	loc     *time.Location
	now     func() time.Time
}

var _ Source = (*NewHopeWinery)(nil)

func NewNewHopeWinery(s Settings, opts Options) *NewHopeWinery {
	opts = opts.withDefaults()
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = newHopeWineryBaseURL
	}
	return &NewHopeWinery{
		baseURL: base,
		rehost:  s.RehostImages,
		client:  opts.Client,
		loc:     opts.Location,
		now:     opts.Now,
	}
}

func (w *NewHopeWinery) Name() string { return NewHopeWineryName }

func (w *NewHopeWinery) RehostImages() bool { return w.rehost }

type nhwResponse struct {
	HTML *struct {
		Dates map[string]nhwDate `json:"dates"`
	} `json:"html"`
}

type nhwDate struct {
	Day       looseInt `json:"day"`
	FullMonth string   `json:"full_month"`
	Year      looseInt `json:"year"`
	Events    struct {
		NotAllDay []nhwEvent `json:"notallday"`
	} `json:"events"`
}

type nhwEvent struct {
	FilteredTitle  string `json:"filtered_title"`
	Venue          string `json:"venue"`
	TicketURL      string `json:"ticket_url"`
	Permalink      string `json:"permalink"`
	AvatarURL      string `json:"avatar_url"`
	ShortStartTime string `json:"short_start_time"`
	TimespanShort  string `json:"timespan_short"`
}

func (w *NewHopeWinery) Crawl(ctx context.Context) ([]*model.Event, error) {
	u := w.baseURL + "/calendar/action~stream/request_format~json/?request_type=jsonp&ai1ec_doing_ajax=true"

	var resp nhwResponse
	if err := jsonpCall(ctx, w.client, NewHopeWineryName, u, w.now(), &resp); err != nil {
		return nil, err
	}
	if resp.HTML == nil {
		return nil, &ParseError{Source: NewHopeWineryName, Err: errors.New(`missing "html"`)}
	}

	keys := make([]string, 0, len(resp.HTML.Dates))
	for k := range resp.HTML.Dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*model.Event
	for _, k := range keys {
		d := resp.HTML.Dates[k]
		day := time.Date(int(d.Year), monthFromName(d.FullMonth), int(d.Day), 0, 0, 0, 0, w.loc)
		for _, raw := range d.Events.NotAllDay {
			out = append(out, w.mapEvent(day, raw))
		}
	}
	return out, nil
}

func (w *NewHopeWinery) mapEvent(day time.Time, raw nhwEvent) *model.Event {
	start := day
	if h, m, ok := parseClock(raw.ShortStartTime); ok {
		start = time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, w.loc)
	}

	e := &model.Event{
		SourceName:  NewHopeWineryName,
		StartDate:   start,
		Title:       raw.FilteredTitle,
		Description: "",
		Extra: map[string]any{
			"ticketUrl": raw.TicketURL,
			"permalink": raw.Permalink,
			"venue":     raw.Venue,
		},
		Location: raw.Venue,
	}
	if end, ok := spanEnd(raw.TimespanShort, start, w.loc); ok {
		e.EndDate = &end
	}
	if raw.AvatarURL != "" {
		e.Image = &model.Image{URL: raw.AvatarURL}
	}

	e.Seal()
	return e
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// monthFromName maps a full English month name to its month. Unknown
// names map to January.
func monthFromName(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, m := range monthNames {
		if m == name {
			return time.Month(i + 1)
		}
	}
	return time.January
}

// parseClock reads wall-clock times like "8:00 pm", "8:00pm" or "8 PM".
func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, layout := range []string{"3:04 pm", "3:04pm", "3 pm", "3pm", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

// spanSeparators divide start from end in a summary. Bare hyphens also
// appear inside ISO dates, so only spaced dashes count.
var spanSeparators = []string{" – ", " — ", " - "}

// spanEnd extracts the end time from a summary like
// "Oct 3 @ 8:00 pm – 10:00 pm". The end lands on the start's day, or the
// next day when it would otherwise precede the start.
func spanEnd(span string, start time.Time, loc *time.Location) (time.Time, bool) {
	i, size := -1, 0
	for _, sep := range spanSeparators {
		if j := strings.LastIndex(span, sep); j > i {
			i, size = j, len(sep)
		}
	}
	if i < 0 {
		return time.Time{}, false
	}
	tail := span[i+size:]
	if at := strings.LastIndex(tail, "@"); at >= 0 {
		tail = tail[at+1:]
	}
	h, m, ok := parseClock(tail)
	if !ok {
		return time.Time{}, false
	}
	end := time.Date(start.Year(), start.Month(), start.Day(), h, m, 0, 0, loc)
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end, true
}

// looseInt decodes both 3 and "3".
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	*n = looseInt(v)
	return nil
}

var _ json.Unmarshaler = (*looseInt)(nil)
