// Package sources fetches event listings from external providers and maps
// them into model.Event values.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alfredjeanlab/osevents/internal/model"
)

// Source is one external event provider.
type Source interface {
	Name() string
	// Crawl fetches and maps every upcoming event the provider exposes.
	// Returned events are sealed. Any failed request fails the whole call.
	Crawl(ctx context.Context) ([]*model.Event, error)
}

// ImageRehosting is implemented by sources whose images should be copied
// to our own bucket before persisting.
type ImageRehosting interface {
	RehostImages() bool
}

// FetchError is a transport failure or non-2xx response from a provider.
type FetchError struct {
	Source string
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: fetch %s: status %d", e.Source, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: fetch %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the provider payload did not have the expected shape.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Settings are the per-source knobs read from the config file.
type Settings struct {
	Enabled      bool
	BaseURL      string
	Months       int
	RehostImages bool
}

// Options are the runtime collaborators shared by every adapter.
type Options struct {
	Client   *http.Client
	Location *time.Location // local time zone of the providers
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = NewHTTPClient(30 * time.Second)
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
