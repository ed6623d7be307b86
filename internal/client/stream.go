package client

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Notification is one server-sent crawl notification.
type Notification struct {
	ID    string
	Topic string
	Data  []byte
}

// StreamCrawl reads GET /v1/crawl/stream until ctx is cancelled, the server
// closes the stream or fn returns an error. Topics are NATS-style patterns;
// none means every notification.
func (c *HTTPClient) StreamCrawl(ctx context.Context, topics []string, fn func(Notification) error) error {
	path := "/v1/crawl/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client's timeout would cut the stream off.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var n Notification
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if n.Topic != "" || n.Data != nil {
				if err := fn(n); err != nil {
					return err
				}
			}
			n = Notification{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			n.ID = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "event:"):
			n.Topic = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			n.Data = append(n.Data, strings.TrimPrefix(line[5:], " ")...)
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
