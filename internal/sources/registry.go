package sources

import "strings"

// SelectAll is the selector that runs every registered source.
const SelectAll = "all"

// Registry holds sources in registration order.
type Registry struct {
	sources []Source
}

// NewRegistry returns a registry containing srcs.
func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{}
	for _, s := range srcs {
		r.Register(s)
	}
	return r
}

// Register appends s. A source with the same name replaces the earlier one.
func (r *Registry) Register(s Source) {
	for i, existing := range r.sources {
		if existing.Name() == s.Name() {
			r.sources[i] = s
			return
		}
	}
	r.sources = append(r.sources, s)
}

// All returns every registered source.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Names returns registered source names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Select resolves a crawl selector. Empty or "all" (any case) yields every
// source, a registered name yields that source, and anything else yields
// an empty slice.
func (r *Registry) Select(selector string) []Source {
	sel := strings.ToLower(strings.TrimSpace(selector))
	if sel == "" || sel == SelectAll {
		return r.All()
	}
	for _, s := range r.sources {
		if s.Name() == sel {
			return []Source{s}
		}
	}
	return []Source{}
}
