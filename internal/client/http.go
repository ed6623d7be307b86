package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// HeaderNext is the response header carrying the next page cursor.
const HeaderNext = "X-Pagination-Next"

// HTTPClient implements EventsClient over the osevents REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a client for baseURL (e.g. "http://localhost:8080").
// When token is non-empty it is sent as a bearer token on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) ListEvents(ctx context.Context, next string, limit int) (*EventPage, error) {
	q := url.Values{}
	if next != "" {
		q.Set("next", next)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var events []*model.Event
	hdr, err := c.doJSON(ctx, http.MethodGet, path, &events)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*model.Event{}
	}
	return &EventPage{Events: events, Next: hdr.Get(HeaderNext)}, nil
}

// ListAllEvents follows cursors from the first page until an empty page,
// calling fn for each non-empty one.
func (c *HTTPClient) ListAllEvents(ctx context.Context, limit int, fn func([]*model.Event) error) error {
	next := ""
	for {
		page, err := c.ListEvents(ctx, next, limit)
		if err != nil {
			return err
		}
		if len(page.Events) == 0 {
			return nil
		}
		if err := fn(page.Events); err != nil {
			return err
		}
		if page.Next == "" || page.Next == next {
			return nil
		}
		next = page.Next
	}
}

func (c *HTTPClient) TriggerCrawl(ctx context.Context, crawler string) (*model.CrawlRun, error) {
	path := "/v1/crawl"
	if crawler != "" {
		path += "?crawler=" + url.QueryEscape(crawler)
	}
	var run model.CrawlRun
	if _, err := c.doJSON(ctx, http.MethodPost, path, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) ListCrawlRuns(ctx context.Context, limit int) ([]*model.CrawlRun, error) {
	path := "/v1/crawl/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var runs []*model.CrawlRun
	if _, err := c.doJSON(ctx, http.MethodGet, path, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if _, err := c.doJSON(ctx, http.MethodGet, "/v1/health", &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// RunID is set when a triggered crawl started but failed.
	RunID string
}

func (e *APIError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("HTTP %d: %s (run %s)", e.StatusCode, e.Message, e.RunID)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs a request and decodes the JSON response into result.
// It returns the response headers on success.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, result any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			RunID   string `json:"run_id"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && (errResp.Error != "" || errResp.Message != "") {
			msg := errResp.Message
			if msg == "" {
				msg = errResp.Error
			}
			return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, RunID: errResp.RunID}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.Header, nil
}
