// Package asynchook moves hook delivery off the caller's goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    FallbackEvery: 100, // log ~every 100th unframed payload
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	pool, _ := poolcache.NewPool(store, poolcache.PoolOptions{
//	    Name:  "sessions",
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/poolcache"
)

// Hooks queues events for a fixed set of workers. When the queue is full the
// event is dropped and counted.
type Hooks struct {
	inner   poolcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ poolcache.Hooks = (*Hooks)(nil)

func New(inner poolcache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = poolcache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent afterwards are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) GroupExpired(pool string, ttl time.Duration) {
	h.try(func() { h.inner.GroupExpired(pool, ttl) })
}
func (h *Hooks) SaveRefused(pool, key string) { h.try(func() { h.inner.SaveRefused(pool, key) }) }
func (h *Hooks) CommitFailed(pool string, written, deleted int, err error) {
	h.try(func() { h.inner.CommitFailed(pool, written, deleted, err) })
}
func (h *Hooks) DecodeFallback(key string)         { h.try(func() { h.inner.DecodeFallback(key) }) }
func (h *Hooks) BackendError(op string, err error) { h.try(func() { h.inner.BackendError(op, err) }) }
