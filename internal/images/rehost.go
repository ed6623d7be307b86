// Package images copies event images into our own bucket so listings do
// not hotlink provider servers.
package images

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Uploader stores an object under key.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Rehoster copies the image at url and returns its new public URL.
type Rehoster interface {
	Rehost(ctx context.Context, sourceName, url string) (string, error)
}

// DownloadError is a failed fetch from the image's original host.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download image %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download image %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

const maxImageBytes = 20 << 20

// ErrImageTooLarge is wrapped by a DownloadError when the body exceeds
// the size limit. Nothing is uploaded in that case.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// HTTPRehoster downloads images over HTTP and hands them to an Uploader.
type HTTPRehoster struct {
	client   *http.Client
	uploader Uploader
	baseURL  string
}

var _ Rehoster = (*HTTPRehoster)(nil)

// NewHTTPRehoster returns a rehoster publishing under baseURL, for example
// "https://images.osevents.io".
func NewHTTPRehoster(client *http.Client, uploader Uploader, baseURL string) *HTTPRehoster {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRehoster{
		client:   client,
		uploader: uploader,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Rehost stores the image as "<sourceName>/<md5 of content>_<file name>".
// Identical bytes always land on the same key.
func (r *HTTPRehoster) Rehost(ctx context.Context, sourceName, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DownloadError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	if len(body) > maxImageBytes {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("%w of %d bytes", ErrImageTooLarge, maxImageBytes)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	key := ObjectKey(sourceName, rawURL, body)
	if err := r.uploader.Put(ctx, key, body, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return r.baseURL + "/" + key, nil
}

// ObjectKey derives the bucket key for an image.
func ObjectKey(sourceName, rawURL string, body []byte) string {
	sum := md5.Sum(body)
	return sourceName + "/" + hex.EncodeToString(sum[:]) + "_" + fileName(rawURL)
}

// fileName is the last path segment of rawURL without query or fragment.
func fileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else {
		p, _, _ = strings.Cut(p, "#")
		p, _, _ = strings.Cut(p, "?")
	}
	name := path.Base(p)
	if name == "/" || name == "." {
		return "image"
	}
	return name
}
