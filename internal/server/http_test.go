package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/osevents/internal/crawl"
	"github.com/alfredjeanlab/osevents/internal/metrics"
	"github.com/alfredjeanlab/osevents/internal/model"
	"github.com/alfredjeanlab/osevents/internal/store/memory"
)

// testStore wraps the in-memory store with injectable failures.
type testStore struct {
	*memory.Store
	listErr error
	pingErr error
}

func (s *testStore) ListEvents(ctx context.Context, f model.EventFilter) ([]*model.Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListEvents(ctx, f)
}

func (s *testStore) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.Store.Ping(ctx)
}

// fakeCrawler records selectors and returns a canned result.
type fakeCrawler struct {
	mu        sync.Mutex
	selectors []string
	err       error
	noRun     bool
}

func (f *fakeCrawler) Run(_ context.Context, selector string) (*model.CrawlRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectors = append(f.selectors, selector)
	if f.noRun {
		return nil, f.err
	}
	return &model.CrawlRun{
		ID:       "cr-abc123",
		Selector: selector,
		Sources:  []*model.SourceResult{{Source: "newhopewinery", Fetched: 2, Inserted: 2}},
	}, f.err
}

var _ crawl.Runner = (*fakeCrawler)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(opts Options) (*Server, *testStore, http.Handler) {
	ts := &testStore{Store: memory.New()}
	if opts.Store == nil {
		opts.Store = ts
	}
	if opts.Crawler == nil {
		opts.Crawler = &fakeCrawler{}
	}
	opts.Logger = quietLogger()
	s := New(opts)
	return s, ts, s.Handler()
}

// doJSON performs an HTTP request with an optional JSON body and returns the recorder.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func seedEvents(t *testing.T, s *memory.Store, n int) {
	t.Helper()
	base := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	evs := make([]*model.Event, n)
	for i := range evs {
		evs[i] = &model.Event{
			SourceName: "mercercountypark",
			StartDate:  base.Add(time.Duration(i) * time.Hour),
			Title:      fmt.Sprintf("Event %02d", i),
		}
	}
	if _, err := s.InsertEvents(context.Background(), evs); err != nil {
		t.Fatalf("seeding events: %v", err)
	}
}

func TestHandleListEvents(t *testing.T) {
	_, ts, h := newTestServer(Options{})
	seedEvents(t, ts.Store, 3)

	rec := doJSON(t, h, "GET", "/v1/events?limit=2", nil)
	requireStatus(t, rec, http.StatusOK)
	next := rec.Header().Get(HeaderNext)
	if next == "" {
		t.Fatal("expected a next cursor")
	}

	var first []map[string]any
	decodeJSON(t, rec, &first)
	if len(first) != 2 || first[0]["title"] != "Event 00" {
		t.Fatalf("first page = %v", first)
	}
	if _, ok := first[0]["id"]; ok {
		t.Fatal("id must not be serialized")
	}
	if _, ok := first[0]["fingerprint"]; ok {
		t.Fatal("fingerprint must not be serialized")
	}

	rec = doJSON(t, h, "GET", "/v1/events?limit=2&next="+next, nil)
	requireStatus(t, rec, http.StatusOK)
	var second []map[string]any
	decodeJSON(t, rec, &second)
	if len(second) != 1 || second[0]["title"] != "Event 02" {
		t.Fatalf("second page = %v", second)
	}

	rec = doJSON(t, h, "GET", "/v1/events?next="+rec.Header().Get(HeaderNext), nil)
	requireStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("past the end body = %q, want []", got)
	}
	if rec.Header().Get(HeaderNext) != "" {
		t.Fatal("expected no cursor on an empty page")
	}
}

func TestHandleListEvents_EmptyIsArray(t *testing.T) {
	_, _, h := newTestServer(Options{})
	rec := doJSON(t, h, "GET", "/v1/events", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
}

func TestHandleListEvents_DefaultLimit(t *testing.T) {
	_, ts, h := newTestServer(Options{})
	seedEvents(t, ts.Store, 25)

	for _, tc := range []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=abc", 20},
		{"?limit=0", 1},
		{"?limit=500", 25},
		{"?limit=7", 7},
	} {
		t.Run(tc.query, func(t *testing.T) {
			rec := doJSON(t, h, "GET", "/v1/events"+tc.query, nil)
			requireStatus(t, rec, http.StatusOK)
			var got []map[string]any
			decodeJSON(t, rec, &got)
			if len(got) != tc.want {
				t.Fatalf("got %d events, want %d", len(got), tc.want)
			}
		})
	}
}

func TestHandleListEvents_InvalidCursor(t *testing.T) {
	_, _, h := newTestServer(Options{})
	for _, next := range []string{"garbage", "123", "abc_1", "1792800000123_x"} {
		rec := doJSON(t, h, "GET", "/v1/events?next="+next, nil)
		requireStatus(t, rec, http.StatusBadRequest)
		var body map[string]string
		decodeJSON(t, rec, &body)
		if body["message"] != "Invalid next token" {
			t.Fatalf("next=%q body = %v", next, body)
		}
	}
}

func TestHandleListEvents_StorageErrorIsGeneric(t *testing.T) {
	_, ts, h := newTestServer(Options{})
	ts.listErr = errors.New(`pq: relation "events" does not exist`)

	rec := doJSON(t, h, "GET", "/v1/events", nil)
	requireStatus(t, rec, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "relation") {
		t.Fatalf("storage detail leaked: %s", rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "unhandled error" || body["error"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandleCrawl(t *testing.T) {
	fc := &fakeCrawler{}
	_, _, h := newTestServer(Options{Crawler: fc})

	rec := doJSON(t, h, "POST", "/v1/crawl?crawler=newhopewinery", nil)
	requireStatus(t, rec, http.StatusOK)
	var run model.CrawlRun
	decodeJSON(t, rec, &run)
	if run.ID != "cr-abc123" || run.Selector != "newhopewinery" {
		t.Fatalf("run = %+v", run)
	}

	rec = doJSON(t, h, "POST", "/v1/crawl", nil)
	requireStatus(t, rec, http.StatusOK)
	if len(fc.selectors) != 2 || fc.selectors[1] != "" {
		t.Fatalf("selectors = %v", fc.selectors)
	}
}

func TestHandleCrawl_Failure(t *testing.T) {
	fc := &fakeCrawler{err: &crawl.AdapterError{Source: "mercercountypark", Err: errors.New("dial tcp: timeout")}}
	_, _, h := newTestServer(Options{Crawler: fc})

	rec := doJSON(t, h, "POST", "/v1/crawl", nil)
	requireStatus(t, rec, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "dial tcp") {
		t.Fatalf("adapter detail leaked: %s", rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["run_id"] != "cr-abc123" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandleCrawl_NotStarted(t *testing.T) {
	fc := &fakeCrawler{noRun: true, err: errors.New("entropy exhausted")}
	_, _, h := newTestServer(Options{Crawler: fc})

	rec := doJSON(t, h, "POST", "/v1/crawl", nil)
	requireStatus(t, rec, http.StatusInternalServerError)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "unhandled error" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandleCrawl_RequiresToken(t *testing.T) {
	_, _, h := newTestServer(Options{AuthToken: "secret"})

	rec := doJSON(t, h, "POST", "/v1/crawl", nil)
	requireStatus(t, rec, http.StatusUnauthorized)

	req := httptest.NewRequest("POST", "/v1/crawl", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)

	// Reads stay public.
	requireStatus(t, doJSON(t, h, "GET", "/v1/events", nil), http.StatusOK)
	requireStatus(t, doJSON(t, h, "GET", "/v1/health", nil), http.StatusOK)
}

func TestHandleListCrawlRuns(t *testing.T) {
	_, ts, h := newTestServer(Options{})
	ctx := context.Background()
	for i := range 3 {
		if err := ts.RecordCrawlRun(ctx, &model.CrawlRun{ID: fmt.Sprintf("cr-%d", i), Selector: "all"}); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(t, h, "GET", "/v1/crawl/runs?limit=2", nil)
	requireStatus(t, rec, http.StatusOK)
	var runs []model.CrawlRun
	decodeJSON(t, rec, &runs)
	if len(runs) != 2 || runs[0].ID != "cr-2" {
		t.Fatalf("runs = %+v", runs)
	}

	requireStatus(t, doJSON(t, h, "GET", "/v1/crawl/runs?limit=-1", nil), http.StatusBadRequest)
}

func TestHandleHealth(t *testing.T) {
	_, ts, h := newTestServer(Options{})
	rec := doJSON(t, h, "GET", "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}

	ts.pingErr = errors.New("connection refused")
	requireStatus(t, doJSON(t, h, "GET", "/v1/health", nil), http.StatusServiceUnavailable)
}

func TestCORS(t *testing.T) {
	_, ts, h := newTestServer(Options{})
	seedEvents(t, ts.Store, 1)

	req := httptest.NewRequest("GET", "/v1/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)

	hdr := rec.Header()
	if got := hdr.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	if hdr.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}
	if !strings.Contains(hdr.Get("Access-Control-Expose-Headers"), HeaderNext) {
		t.Fatalf("expose headers = %q", hdr.Get("Access-Control-Expose-Headers"))
	}

	rec = doJSON(t, h, "GET", "/v1/events", nil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin without Origin = %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	fc := &fakeCrawler{}
	_, _, h := newTestServer(Options{Crawler: fc, AuthToken: "secret"})

	req := httptest.NewRequest(http.MethodOptions, "/v1/crawl", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusNoContent)
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected allowed methods on preflight")
	}
	if len(fc.selectors) != 0 {
		t.Fatal("preflight must not trigger a crawl")
	}
}

func TestRequestID(t *testing.T) {
	_, _, h := newTestServer(Options{})

	rec := doJSON(t, h, "GET", "/v1/health", nil)
	if len(rec.Header().Get(HeaderRequestID)) != 36 {
		t.Fatalf("request id = %q, want a uuid", rec.Header().Get(HeaderRequestID))
	}

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set(HeaderRequestID, "trace-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "trace-42" {
		t.Fatalf("request id = %q, want trace-42", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(quietLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := doJSON(t, h, "GET", "/anything", nil)
	requireStatus(t, rec, http.StatusInternalServerError)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "unhandled error" {
		t.Fatalf("body = %v", body)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	_, _, h := newTestServer(Options{Metrics: m, Gatherer: reg})

	requireStatus(t, doJSON(t, h, "GET", "/v1/events", nil), http.StatusOK)
	requireStatus(t, doJSON(t, h, "GET", "/v1/events?next=bad", nil), http.StatusBadRequest)
	requireStatus(t, doJSON(t, h, "GET", "/nope", nil), http.StatusNotFound)

	n, err := testutil.GatherAndCount(reg, "osevents_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("http_requests_total series = %d, want 3", n)
	}

	rec := doJSON(t, h, "GET", "/metrics", nil)
	requireStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `osevents_http_requests_total{code="200",route="GET /v1/events"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}
