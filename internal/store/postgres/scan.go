package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		endDate sql.NullTime
		extra   []byte
		image   []byte
		coord   []byte
	)

	err := row.Scan(
		&e.ID,
		&e.Fingerprint,
		&e.SourceName,
		&e.StartDate,
		&endDate,
		&e.Title,
		&e.Description,
		&extra,
		&image,
		&e.Location,
		&coord,
	)
	if err != nil {
		return nil, err
	}

	e.StartDate = e.StartDate.UTC()
	if endDate.Valid {
		t := endDate.Time.UTC()
		e.EndDate = &t
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &e.Extra); err != nil {
			return nil, fmt.Errorf("event %d: decode extra: %w", e.ID, err)
		}
	}
	if len(image) > 0 && string(image) != "null" {
		e.Image = &model.Image{}
		if err := json.Unmarshal(image, e.Image); err != nil {
			return nil, fmt.Errorf("event %d: decode image: %w", e.ID, err)
		}
	}
	if len(coord) > 0 && string(coord) != "null" {
		e.LocationCoord = &model.Coord{}
		if err := json.Unmarshal(coord, e.LocationCoord); err != nil {
			return nil, fmt.Errorf("event %d: decode location_coord: %w", e.ID, err)
		}
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanCrawlRuns(rows *sql.Rows) ([]*model.CrawlRun, error) {
	var runs []*model.CrawlRun
	for rows.Next() {
		var (
			r       model.CrawlRun
			sources []byte
		)
		if err := rows.Scan(&r.ID, &r.Selector, &r.StartedAt, &r.FinishedAt, &sources); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &r.Sources); err != nil {
				return nil, fmt.Errorf("crawl run %s: decode sources: %w", r.ID, err)
			}
		}
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// jsonbValue marshals v for a nullable JSONB column. Nil pointers and
// nil slices become SQL NULL.
func jsonbValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

// jsonbObject marshals m for a NOT NULL JSONB object column.
func jsonbObject(m map[string]any) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	data, err := json.Marshal(m)
	if err != nil {
		// Values json rejects were already flattened when fingerprinting;
		// store the same rendering rather than failing the whole chunk.
		data, _ = json.Marshal(map[string]string{"$fmt": fmt.Sprint(m)})
	}
	return data
}
