// Package metrics exposes crawl and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/osevents/internal/model"
)

const namespace = "osevents"

// Image rehost outcomes.
const (
	ImageOK     = "ok"
	ImageError  = "error"
	ImageCached = "cached"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsFetched   *prometheus.CounterVec
	eventsInserted  *prometheus.CounterVec
	eventsDuplicate *prometheus.CounterVec
	sourceFailures  *prometheus.CounterVec
	imagesRehosted  *prometheus.CounterVec
	crawlDuration   prometheus.Histogram
	lastCrawl       prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_events_fetched_total",
			Help:      "Events returned by a source adapter",
		}, []string{"source"}),
		eventsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_events_inserted_total",
			Help:      "New events stored per source",
		}, []string{"source"}),
		eventsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_events_duplicate_total",
			Help:      "Events skipped because their fingerprint was already stored",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Crawl attempts that failed per source",
		}, []string{"source"}),
		imagesRehosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_rehosted_total",
			Help:      "Image rehost attempts by result",
		}, []string{"result"}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Wall time of a full crawl run",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		lastCrawl: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_crawl_timestamp_seconds",
			Help:      "Unix time the most recent crawl run finished",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.eventsFetched, m.eventsInserted, m.eventsDuplicate, m.sourceFailures,
		m.imagesRehosted, m.crawlDuration, m.lastCrawl, m.httpRequests,
	)
	return m
}

// NewRegistry returns a registry preloaded with Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveSource records one adapter's contribution to a run.
func (m *Metrics) ObserveSource(r *model.SourceResult) {
	if m == nil || r == nil {
		return
	}
	m.eventsFetched.WithLabelValues(r.Source).Add(float64(r.Fetched))
	m.eventsInserted.WithLabelValues(r.Source).Add(float64(r.Inserted))
	m.eventsDuplicate.WithLabelValues(r.Source).Add(float64(r.Duplicates))
	if r.Error != "" {
		m.sourceFailures.WithLabelValues(r.Source).Inc()
	}
}

func (m *Metrics) ImageRehosted(result string) {
	if m == nil {
		return
	}
	m.imagesRehosted.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCrawl(d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.crawlDuration.Observe(d.Seconds())
	m.lastCrawl.Set(float64(finished.Unix()))
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
