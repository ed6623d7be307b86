// Package server exposes the event read API, the crawl trigger and the
// gRPC health service.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/osevents/internal/crawl"
	"github.com/alfredjeanlab/osevents/internal/metrics"
	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/pagination"
)

// HeaderNext carries the cursor of the following page on GET /v1/events.
const HeaderNext = "X-Pagination-Next"

// HeaderRequestID echoes the per-request id.
const HeaderRequestID = "X-Request-Id"

// Store is what the HTTP surface reads from.
type Store interface {
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	RecentCrawlRuns(ctx context.Context, limit int) ([]*model.CrawlRun, error)
	Ping(ctx context.Context) error
}

// Options configures a Server. Store and Crawler are required.
type Options struct {
	Store   Store
	Crawler crawl.Runner

	// Location sets the day boundary for upcoming events. Nil means UTC.
	Location *time.Location

	// AuthToken, when set, must be presented as a bearer token to
	// trigger crawls.
	AuthToken string

	// Stream, when set, serves crawl notifications on GET /v1/crawl/stream.
	Stream *StreamHub

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server implements the HTTP handlers.
type Server struct {
	store     Store
	pages     *pagination.Engine
	crawler   crawl.Runner
	authToken string
	stream    *StreamHub
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     opts.Store,
		pages:     pagination.NewEngine(opts.Store, opts.Location),
		crawler:   opts.Crawler,
		authToken: opts.AuthToken,
		stream:    opts.Stream,
		metrics:   opts.Metrics,
		gatherer:  opts.Gatherer,
		logger:    logger,
	}
}

// Handler returns an http.Handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.Handle("POST /v1/crawl", AuthMiddleware(s.authToken, http.HandlerFunc(s.handleCrawl)))
	mux.HandleFunc("GET /v1/crawl/runs", s.handleListCrawlRuns)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if s.stream != nil {
		mux.HandleFunc("GET /v1/crawl/stream", s.handleCrawlStream)
	}
	if s.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}

	var h http.Handler = mux
	h = CORSMiddleware(h)
	h = InstrumentMiddleware(s.metrics, h)
	h = LoggingMiddleware(s.logger, h)
	h = RequestIDMiddleware(h)
	h = RecoveryMiddleware(s.logger, h)
	return h
}
