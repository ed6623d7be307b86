package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/osevents/internal/events"
)

const (
	// streamBacklog is how many notifications are kept for Last-Event-ID replay.
	streamBacklog = 256

	streamKeepalive = 15 * time.Second
)

type notification struct {
	ID    uint64
	Topic string
	Data  []byte
}

// StreamHub fans crawl notifications out to server-sent event clients on
// GET /v1/crawl/stream. It implements events.Publisher so the orchestrator
// can publish to it alongside NATS.
type StreamHub struct {
	mu      sync.Mutex
	lastID  uint64
	backlog []notification // oldest first, at most streamBacklog entries
	subs    map[*streamSub]struct{}
	closed  bool
	done    chan struct{}
}

type streamSub struct {
	patterns []string
	ch       chan notification
}

var _ events.Publisher = (*StreamHub)(nil)

func NewStreamHub() *StreamHub {
	return &StreamHub{
		subs: make(map[*streamSub]struct{}),
		done: make(chan struct{}),
	}
}

// Publish encodes event as JSON and delivers it to every matching client.
// Slow clients miss notifications rather than stall the publisher.
func (h *StreamHub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s notification: %w", topic, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.lastID++
	n := notification{ID: h.lastID, Topic: topic, Data: data}
	if len(h.backlog) == streamBacklog {
		h.backlog = h.backlog[1:]
	}
	h.backlog = append(h.backlog, n)

	for sub := range h.subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
		}
	}
	return nil
}

// Close ends every open stream. Later publishes are dropped.
func (h *StreamHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}

// subscribe registers a client and returns the backlog newer than lastID
// that matches its patterns.
func (h *StreamHub) subscribe(patterns []string, lastID uint64) (*streamSub, []notification) {
	sub := &streamSub{patterns: patterns, ch: make(chan notification, 64)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}

	var replay []notification
	if lastID > 0 {
		for _, n := range h.backlog {
			if n.ID > lastID && sub.matches(n.Topic) {
				replay = append(replay, n)
			}
		}
	}
	return sub, replay
}

func (h *StreamHub) unsubscribe(sub *streamSub) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (s *streamSub) matches(topic string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if events.MatchTopic(p, topic) {
			return true
		}
	}
	return false
}

// handleCrawlStream handles GET /v1/crawl/stream.
func (s *Server) handleCrawlStream(w http.ResponseWriter, r *http.Request) {
	var patterns []string
	for _, p := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	sub, replay := s.stream.subscribe(patterns, lastID)
	defer s.stream.unsubscribe(sub)

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, n := range replay {
		writeNotification(w, n)
	}
	if err := rc.Flush(); err != nil {
		s.logger.Warn("crawl stream cannot flush", "err", err)
		return
	}

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.stream.done:
			return
		case n := <-sub.ch:
			writeNotification(w, n)
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeNotification(w http.ResponseWriter, n notification) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", n.ID, n.Topic, n.Data)
}
