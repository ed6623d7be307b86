package images

import (
	"context"
	"fmt"
	"sync"
)

// Cache memoizes rehost results per source URL for the lifetime of one
// crawl run. Concurrent callers for the same URL share a single call.
// Discard it when the run ends.
type Cache struct {
	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	done chan struct{}
	val  string
	err  error
}

func NewCache() *Cache {
	return &Cache{calls: make(map[string]*call)}
}

// Do returns the result of fn for url, running fn at most once. Callers
// that arrive while fn is in flight wait for it unless ctx ends first.
// shared reports whether the result came from another caller's call.
// A panic in fn is returned as an error to the caller and every waiter.
func (c *Cache) Do(ctx context.Context, url string, fn func(ctx context.Context) (string, error)) (val string, shared bool, err error) {
	c.mu.Lock()
	if cl, ok := c.calls[url]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.val, true, cl.err
		case <-ctx.Done():
			return "", true, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.calls[url] = cl
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			cl.val, cl.err = "", fmt.Errorf("rehost %s panicked: %v", url, r)
			val, shared, err = cl.val, false, cl.err
		}
		close(cl.done)
	}()
	cl.val, cl.err = fn(ctx)
	return cl.val, false, cl.err
}

// Len returns how many distinct URLs have been requested.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
