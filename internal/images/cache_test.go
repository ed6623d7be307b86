package images

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_SingleFlight(t *testing.T) {
	c := NewCache()
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "https://images.osevents.io/k", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	shared := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, s, err := c.Do(context.Background(), "https://src/a.jpg", fn)
			if err != nil {
				t.Errorf("Do: %v", err)
			}
			results[i], shared[i] = v, s
		}(i)
	}

	// Let every goroutine reach the cache before releasing the call.
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn called %d times, want 1", got)
	}
	owners := 0
	for i := range results {
		if results[i] != "https://images.osevents.io/k" {
			t.Errorf("result[%d] = %q", i, results[i])
		}
		if !shared[i] {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("%d callers ran fn, want 1", owners)
	}
}

func TestCache_MemoizesErrors(t *testing.T) {
	c := NewCache()
	boom := errors.New("404")
	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "", boom
	}

	for i := 0; i < 3; i++ {
		if _, _, err := c.Do(context.Background(), "u", fn); !errors.Is(err, boom) {
			t.Fatalf("Do #%d err = %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}

func TestCache_DistinctURLs(t *testing.T) {
	c := NewCache()
	fn := func(v string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return v, nil }
	}
	a, _, _ := c.Do(context.Background(), "a", fn("A"))
	b, _, _ := c.Do(context.Background(), "b", fn("B"))
	if a != "A" || b != "B" {
		t.Fatalf("got %q, %q", a, b)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestCache_WaiterHonoursContext(t *testing.T) {
	c := NewCache()
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	go func() {
		_, _, _ = c.Do(context.Background(), "slow", func(context.Context) (string, error) {
			close(started)
			<-release
			return "x", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := c.Do(ctx, "slow", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestCache_PanicReleasesWaiters(t *testing.T) {
	c := NewCache()
	started := make(chan struct{})
	release := make(chan struct{})

	ownerErr := make(chan error, 1)
	go func() {
		_, shared, err := c.Do(context.Background(), "bad", func(context.Context) (string, error) {
			close(started)
			<-release
			panic("decoder exploded")
		})
		if shared {
			t.Error("owner reported shared result")
		}
		ownerErr <- err
	}()
	<-started

	waiterErr := make(chan error, 1)
	go func() {
		_, _, err := c.Do(context.Background(), "bad", nil)
		waiterErr <- err
	}()
	close(release)

	for name, ch := range map[string]chan error{"owner": ownerErr, "waiter": waiterErr} {
		select {
		case err := <-ch:
			if err == nil || !strings.Contains(err.Error(), "decoder exploded") {
				t.Errorf("%s err = %v, want panic error", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s still blocked after fn panicked", name)
		}
	}
}
