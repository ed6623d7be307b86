package sources

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const userAgent = "osevents-crawler/1.0 (+https://osevents.io)"

// maxBodyBytes caps a single provider response.
const maxBodyBytes = 16 << 20

// NewHTTPClient returns a client with a bounded per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// fetch performs req and returns the body of a 2xx response. All failures
// are reported as *FetchError.
func fetch(ctx context.Context, client *http.Client, source string, req *http.Request) ([]byte, error) {
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: source, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Source: source,
			URL:    req.URL.String(),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Source: source, URL: req.URL.String(), Err: err}
	}
	return body, nil
}
