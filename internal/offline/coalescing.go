package offline

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-pro-dashboard/internal/cache"
)

// inFlightFetch tracks a single network fetch that multiple callers may wait for.
type inFlightFetch struct {
	mu      sync.Mutex
	entry   *cache.Entry
	err     error
	done    bool
	waiters []chan struct{}
}

// fetchCoalescer collapses concurrent fetches of the same key into one network
// call, and runs background revalidations at most once per key at a time.
type fetchCoalescer struct {
	mu         sync.Mutex
	inFlight   map[string]*inFlightFetch
	background map[string]struct{}
	wg         sync.WaitGroup
	timeout    time.Duration
}

// newFetchCoalescer bounds every shared fetch by timeout.
func newFetchCoalescer(timeout time.Duration) *fetchCoalescer {
	return &fetchCoalescer{
		inFlight:   make(map[string]*inFlightFetch),
		background: make(map[string]struct{}),
		timeout:    timeout,
	}
}

// Do runs fn for key unless a fetch for key is already in flight, in which case
// it waits for that one. fn gets a context detached from ctx's cancellation and
// bounded by the coalescer timeout, so one caller giving up does not fail the
// others. Each caller still returns early with ctx.Err() if its own ctx ends.
func (fc *fetchCoalescer) Do(ctx context.Context, key string, fn func(ctx context.Context) (*cache.Entry, error)) (*cache.Entry, error) {
	fc.mu.Lock()
	f, exists := fc.inFlight[key]
	if !exists {
		f = &inFlightFetch{}
		fc.inFlight[key] = f
		fetchCtx, cancel := fc.detach(ctx)
		fc.wg.Add(1)
		go func() {
			defer fc.wg.Done()
			defer cancel()
			entry, err := fn(fetchCtx)

			f.mu.Lock()
			f.entry = entry
			f.err = err
			f.done = true
			waiters := f.waiters
			f.waiters = nil
			f.mu.Unlock()

			for _, notify := range waiters {
				close(notify)
			}
			fc.cleanup(key)
		}()
	}
	notify := make(chan struct{})
	f.mu.Lock()
	if f.done {
		entry, err := f.entry, f.err
		f.mu.Unlock()
		fc.mu.Unlock()
		return entry, err
	}
	f.waiters = append(f.waiters, notify)
	f.mu.Unlock()
	fc.mu.Unlock()

	select {
	case <-notify:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.entry, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (fc *fetchCoalescer) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	if fc.timeout <= 0 {
		return context.WithCancel(context.WithoutCancel(ctx))
	}
	return context.WithTimeout(context.WithoutCancel(ctx), fc.timeout)
}

// Go starts fn in the background unless a background run for key is already
// active. Reports whether fn was started.
func (fc *fetchCoalescer) Go(key string, fn func()) bool {
	fc.mu.Lock()
	if _, busy := fc.background[key]; busy {
		fc.mu.Unlock()
		return false
	}
	fc.background[key] = struct{}{}
	fc.wg.Add(1)
	fc.mu.Unlock()

	go func() {
		defer fc.wg.Done()
		defer func() {
			fc.mu.Lock()
			delete(fc.background, key)
			fc.mu.Unlock()
		}()
		fn()
	}()
	return true
}

// Wait blocks until every background run and shared fetch has finished.
func (fc *fetchCoalescer) Wait() {
	fc.wg.Wait()
}

func (fc *fetchCoalescer) cleanup(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.inFlight, key)
}
