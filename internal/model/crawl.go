package model

import "time"

// CrawlRun summarizes one orchestrator run across its selected sources.
type CrawlRun struct {
	ID         string          `json:"id"`
	Selector   string          `json:"selector"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Sources    []*SourceResult `json:"sources"`
}

// SourceResult records what a single source contributed to a run.
type SourceResult struct {
	Source         string `json:"source"`
	Fetched        int    `json:"fetched"`
	Inserted       int    `json:"inserted"`
	Duplicates     int    `json:"duplicates"`
	ImagesRehosted int    `json:"images_rehosted"`
	Error          string `json:"error,omitempty"`
}

// Failed reports whether any source in the run ended with an error.
func (r *CrawlRun) Failed() bool {
	for _, s := range r.Sources {
		if s.Error != "" {
			return true
		}
	}
	return false
}

// Totals sums fetched and inserted counts across sources.
func (r *CrawlRun) Totals() (fetched, inserted int) {
	for _, s := range r.Sources {
		fetched += s.Fetched
		inserted += s.Inserted
	}
	return fetched, inserted
}
