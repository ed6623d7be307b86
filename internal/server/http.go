package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/pagination"
)

const (
	defaultRunsLimit = 10
	healthTimeout    = 2 * time.Second
)

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.pages.List(r.Context(), q.Get("next"), pagination.ParseLimit(q.Get("limit")))
	if errors.Is(err, pagination.ErrInvalidCursor) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid next token"})
		return
	}
	if err != nil {
		s.internalError(w, r, "list events", err)
		return
	}

	if page.Next != "" {
		w.Header().Set(HeaderNext, page.Next)
	}
	writeJSON(w, http.StatusOK, page.Events)
}

// handleCrawl handles POST /v1/crawl?crawler=all|<name>.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("crawler")

	// A client hanging up must not abort persistence half way.
	ctx := context.WithoutCancel(r.Context())
	run, err := s.crawler.Run(ctx, selector)
	if run == nil {
		s.internalError(w, r, "start crawl", err)
		return
	}
	if err != nil {
		s.logger.Error("crawl finished with errors",
			"run_id", run.ID,
			"request_id", RequestID(r.Context()),
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal error",
			"message": "crawl failed",
			"run_id":  run.ID,
		})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleListCrawlRuns handles GET /v1/crawl/runs.
func (s *Server) handleListCrawlRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, pagination.MaxLimit)
	}

	runs, err := s.store.RecentCrawlRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "list crawl runs", err)
		return
	}
	if runs == nil {
		runs = []*model.CrawlRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// internalError logs err and writes a body that reveals nothing about it.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed",
		"request_id", RequestID(r.Context()),
		"err", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "internal error",
		"message": "unhandled error",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
