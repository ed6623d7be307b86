package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/osevents/internal/events"
)

func TestStreamHubDeliversMatchingTopics(t *testing.T) {
	hub := NewStreamHub()
	ctx := context.Background()

	all, _ := hub.subscribe(nil, 0)
	failures, _ := hub.subscribe([]string{"osevents.source.*"}, 0)

	if err := hub.Publish(ctx, events.TopicCrawlCompleted, events.CrawlCompleted{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := hub.Publish(ctx, events.TopicSourceFailed, events.SourceFailed{Source: "a"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := len(all.ch); got != 2 {
		t.Fatalf("unfiltered client got %d notifications, want 2", got)
	}
	if got := len(failures.ch); got != 1 {
		t.Fatalf("filtered client got %d notifications, want 1", got)
	}
	n := <-failures.ch
	if n.ID != 2 || n.Topic != events.TopicSourceFailed {
		t.Fatalf("notification = %d %s", n.ID, n.Topic)
	}
	if !strings.Contains(string(n.Data), `"source":"a"`) {
		t.Fatalf("data = %s", n.Data)
	}

	hub.unsubscribe(all)
	hub.unsubscribe(failures)
	if len(hub.subs) != 0 {
		t.Fatalf("subs = %d after unsubscribe", len(hub.subs))
	}
}

func TestStreamHubBacklog(t *testing.T) {
	hub := NewStreamHub()
	for range streamBacklog + 10 {
		if err := hub.Publish(context.Background(), events.TopicCrawlCompleted, events.CrawlCompleted{}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(hub.backlog) != streamBacklog {
		t.Fatalf("backlog = %d, want %d", len(hub.backlog), streamBacklog)
	}
	if hub.backlog[0].ID != 11 {
		t.Fatalf("oldest kept id = %d, want 11", hub.backlog[0].ID)
	}

	_, replay := hub.subscribe(nil, uint64(streamBacklog+8))
	if len(replay) != 2 {
		t.Fatalf("replay = %d, want 2", len(replay))
	}
	_, replay = hub.subscribe(nil, 0)
	if len(replay) != 0 {
		t.Fatalf("replay without Last-Event-ID = %d, want 0", len(replay))
	}
}

func TestStreamHubClosed(t *testing.T) {
	hub := NewStreamHub()
	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := hub.Publish(context.Background(), events.TopicCrawlCompleted, events.CrawlCompleted{}); err != nil {
		t.Fatalf("Publish after Close: %v", err)
	}
	if len(hub.backlog) != 0 {
		t.Fatalf("backlog = %d after Close", len(hub.backlog))
	}
}

func TestCrawlStreamReplay(t *testing.T) {
	hub := NewStreamHub()
	ctx := context.Background()
	_ = hub.Publish(ctx, events.TopicCrawlCompleted, events.CrawlCompleted{})
	_ = hub.Publish(ctx, events.TopicSourceFailed, events.SourceFailed{RunID: "cr-1", Source: "b", Error: "timeout"})
	_ = hub.Publish(ctx, events.TopicCrawlCompleted, events.CrawlCompleted{})

	_, _, handler := newTestServer(Options{Stream: hub})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/crawl/stream?topics=osevents.source.failed", nil)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	hub.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	want := "id:2\nevent:osevents.source.failed\ndata:{\"run_id\":\"cr-1\",\"source\":\"b\",\"error\":\"timeout\"}\n\n"
	if string(body) != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
}

func TestCrawlStreamDisabled(t *testing.T) {
	_, _, handler := newTestServer(Options{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawl/stream", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
