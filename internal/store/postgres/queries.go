package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, fingerprint, source_name, start_date, end_date,
	title, description, extra, image, location, location_coord`

// insertColumns are written by InsertEvents; id and created_at are defaulted.
const insertColumns = 10

// insertChunkSize bounds the rows per INSERT statement. 500 rows keeps the
// statement well below the 65535 bind-parameter limit.
const insertChunkSize = 500

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryInsertEvents inserts events chunk by chunk, skipping fingerprints
// that already exist, and returns how many rows were inserted.
func queryInsertEvents(ctx context.Context, db executor, events []*model.Event) (int, error) {
	inserted := 0
	for start := 0; start < len(events); start += insertChunkSize {
		end := min(start+insertChunkSize, len(events))
		n, err := insertChunk(ctx, db, events[start:end])
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	return inserted, nil
}

func insertChunk(ctx context.Context, db executor, chunk []*model.Event) (int, error) {
	var (
		sb   strings.Builder
		args = make([]any, 0, len(chunk)*insertColumns)
	)
	sb.WriteString(`INSERT INTO events (
		fingerprint, source_name, start_date, end_date, title,
		description, extra, image, location, location_coord
	) VALUES `)

	byFingerprint := make(map[string][]*model.Event, len(chunk))
	for i, e := range chunk {
		e.Seal()
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * insertColumns
		sb.WriteByte('(')
		for c := 1; c <= insertColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteByte(')')

		image, err := jsonbValue(e.Image)
		if err != nil {
			return 0, fmt.Errorf("encode image for %q: %w", e.Title, err)
		}
		coord, err := jsonbValue(e.LocationCoord)
		if err != nil {
			return 0, fmt.Errorf("encode location for %q: %w", e.Title, err)
		}
		args = append(args,
			e.Fingerprint,
			e.SourceName,
			e.StartDate,
			nullTimePtr(e.EndDate),
			e.Title,
			e.Description,
			jsonbObject(e.Extra),
			image,
			e.Location,
			coord,
		)
		byFingerprint[e.Fingerprint] = append(byFingerprint[e.Fingerprint], e)
	}
	sb.WriteString(` ON CONFLICT (fingerprint) DO NOTHING RETURNING id, fingerprint`)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, mapError(err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id int64
			fp string
		)
		if err := rows.Scan(&id, &fp); err != nil {
			return 0, err
		}
		// Only the first event with a given fingerprint was stored.
		if evs := byFingerprint[fp]; len(evs) > 0 {
			evs[0].ID = id
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, error) {
	var (
		where string
		args  []any
	)
	if filter.After != nil {
		where = `(start_date, id) > ($1, $2)`
		args = append(args, filter.After.StartDate, filter.After.ID)
	} else {
		where = `start_date > $1`
		args = append(args, filter.StartAfter)
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY start_date ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryRecordCrawlRun(ctx context.Context, db executor, run *model.CrawlRun) error {
	sources, err := jsonbValue(run.Sources)
	if err != nil {
		return fmt.Errorf("encode crawl run sources: %w", err)
	}
	if sources == nil {
		sources = []byte("[]")
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, selector, started_at, finished_at, sources)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID,
		run.Selector,
		run.StartedAt,
		run.FinishedAt,
		sources,
	)
	if err != nil {
		return fmt.Errorf("record crawl run %s: %w", run.ID, err)
	}
	return nil
}

func queryRecentCrawlRuns(ctx context.Context, db executor, limit int) ([]*model.CrawlRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, selector, started_at, finished_at, sources
		FROM crawl_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list crawl runs: %w", err)
	}
	defer rows.Close()
	return scanCrawlRuns(rows)
}

// mapError wraps a failed insert. ON CONFLICT absorbs fingerprint
// collisions without an error, so a unique violation that reaches here came
// from some other constraint and the transaction has already aborted.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("insert events: unique constraint %q: %w", pqErr.Constraint, err)
	}
	return fmt.Errorf("insert events: %w", err)
}
