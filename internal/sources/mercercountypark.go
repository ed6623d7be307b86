package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

const (
	MercerCountyParkName    = "mercercountypark"
	mercerCountyParkBaseURL = "https://mercercountyparks.org"
	mercerCountyParkPlace   = "Mercer County Park, NJ"
	defaultHorizonMonths    = 12
)

// MercerCountyPark crawls the park system's REST API, one POST per month.
type MercerCountyPark struct {
	baseURL string
	months  int
	rehost  bool
	client  *http.Client
	loc     *time.Location
	now     func() time.Time
}

var _ Source = (*MercerCountyPark)(nil)

// NewMercerCountyPark returns the adapter. Zero-valued settings fall back
// to the public endpoint and a twelve-month horizon.
func NewMercerCountyPark(s Settings, opts Options) *MercerCountyPark {
	opts = opts.withDefaults()
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = mercerCountyParkBaseURL
	}
	months := s.Months
	if months <= 0 {
		months = defaultHorizonMonths
	}
	return &MercerCountyPark{
		baseURL: base,
		months:  months,
		rehost:  s.RehostImages,
		client:  opts.Client,
		loc:     opts.Location,
		now:     opts.Now,
	}
}

func (p *MercerCountyPark) Name() string { return MercerCountyParkName }

func (p *MercerCountyPark) RehostImages() bool { return p.rehost }

func (p *MercerCountyPark) Crawl(ctx context.Context) ([]*model.Event, error) {
	now := p.now().In(p.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, p.loc)

	seen := make(map[string]struct{})
	var out []*model.Event
	for i := 0; i < p.months; i++ {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, -1)

		events, err := p.fetchMonth(ctx, start, end)
		if err != nil {
			return nil, err
		}
		// Multi-day events are listed under every month they touch.
		for _, e := range events {
			if _, dup := seen[e.Fingerprint]; dup {
				continue
			}
			seen[e.Fingerprint] = struct{}{}
			out = append(out, e)
		}
	}
	return out, nil
}

type mcpRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type mcpResponse struct {
	Results *struct {
		EventsByDate map[string][]mcpEvent `json:"events_by_date"`
	} `json:"results"`
}

type mcpEvent struct {
	StartDatetime      string    `json:"start_datetime"`
	EndDatetime        string    `json:"end_datetime"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Note               string    `json:"note"`
	Recurring          bool      `json:"recurring"`
	LocationCoordinate []any     `json:"location_coordinate"`
	DetailImage        *mcpImage `json:"detail_image"`
}

type mcpImage struct {
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

func (p *MercerCountyPark) fetchMonth(ctx context.Context, start, end time.Time) ([]*model.Event, error) {
	body, err := json.Marshal(mcpRequest{
		StartDate: start.Format(time.DateOnly),
		EndDate:   end.Format(time.DateOnly),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/api/events-by-date/list/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := fetch(ctx, p.client, MercerCountyParkName, req)
	if err != nil {
		return nil, err
	}

	var resp mcpResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ParseError{Source: MercerCountyParkName, Err: err}
	}
	if resp.Results == nil {
		return nil, &ParseError{Source: MercerCountyParkName, Err: errors.New(`missing "results"`)}
	}

	dates := make([]string, 0, len(resp.Results.EventsByDate))
	for d := range resp.Results.EventsByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var out []*model.Event
	for _, d := range dates {
		for _, raw := range resp.Results.EventsByDate[d] {
			e, err := p.mapEvent(raw)
			if err != nil {
				return nil, &ParseError{Source: MercerCountyParkName, Err: fmt.Errorf("date %s: %w", d, err)}
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *MercerCountyPark) mapEvent(raw mcpEvent) (*model.Event, error) {
	start, err := parseSourceTime(raw.StartDatetime, p.loc)
	if err != nil {
		return nil, fmt.Errorf("event %q: start_datetime: %w", raw.Title, err)
	}

	e := &model.Event{
		SourceName:  MercerCountyParkName,
		StartDate:   start,
		Title:       raw.Title,
		Description: raw.Description,
		Extra:       map[string]any{"note": raw.Note},
		Location:    mercerCountyParkPlace,
	}
	if raw.Recurring {
		e.Extra["recurring"] = true
	}
	if raw.EndDatetime != "" {
		if end, err := parseSourceTime(raw.EndDatetime, p.loc); err == nil {
			e.EndDate = &end
		}
	}
	if img := raw.DetailImage; img != nil && img.URL != "" {
		u := img.URL
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			u = p.baseURL + u
		}
		e.Image = &model.Image{URL: u, Width: img.Width, Height: img.Height}
	}
	if c, ok := coordFrom(raw.LocationCoordinate); ok {
		e.LocationCoord = &c
	}

	e.Seal()
	return e, nil
}

func coordFrom(vals []any) (model.Coord, bool) {
	if len(vals) != 2 {
		return model.Coord{}, false
	}
	lat, ok1 := vals[0].(float64)
	lng, ok2 := vals[1].(float64)
	if !ok1 || !ok2 || !finite(lat) || !finite(lng) {
		return model.Coord{}, false
	}
	return model.Coord{lat, lng}, true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseSourceTime accepts RFC 3339 timestamps and zone-less ISO forms.
// Zone-less values are read in loc.
func parseSourceTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
