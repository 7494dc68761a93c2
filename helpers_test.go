package poolcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/poolcache/store"
	"github.com/unkn0wn-root/poolcache/store/memory"
)

var errBoom = errors.New("boom")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// newClock pins the package clock (and the store's, when given) to a fake one.
func newClock(t *testing.T, s *memory.Memory) *fakeClock {
	t.Helper()
	c := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	prev := now
	now = c.Now
	t.Cleanup(func() { now = prev })
	if s != nil {
		s.SetClock(c.Now)
	}
	return c
}

func newMemStore(t *testing.T) *memory.Memory {
	t.Helper()
	s := memory.New(0)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// failStore wraps a Store, counts calls per operation and fails the ones listed
// in fail.
type failStore struct {
	store.Store
	fail  map[string]error
	calls map[string]int
}

func newFailStore(inner store.Store) *failStore {
	return &failStore{Store: inner, fail: map[string]error{}, calls: map[string]int{}}
}

func (f *failStore) hit(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *failStore) total() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *failStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.hit("get"); err != nil {
		return nil, false, err
	}
	return f.Store.Get(ctx, key)
}

func (f *failStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := f.hit("mget"); err != nil {
		return nil, err
	}
	return f.Store.MGet(ctx, keys)
}

func (f *failStore) Set(ctx context.Context, key string, value []byte) error {
	if err := f.hit("set"); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value)
}

func (f *failStore) MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration, expire bool) error {
	if err := f.hit("mset"); err != nil {
		return err
	}
	return f.Store.MSet(ctx, pairs, ttl, expire)
}

func (f *failStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := f.hit("del"); err != nil {
		return 0, err
	}
	return f.Store.Del(ctx, keys...)
}

func (f *failStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.hit("exists"); err != nil {
		return false, err
	}
	return f.Store.Exists(ctx, key)
}

func (f *failStore) GroupGet(ctx context.Context, group, field string) ([]byte, bool, error) {
	if err := f.hit("hget"); err != nil {
		return nil, false, err
	}
	return f.Store.GroupGet(ctx, group, field)
}

func (f *failStore) GroupGetMany(ctx context.Context, group string, fields []string) (map[string][]byte, error) {
	if err := f.hit("hmget"); err != nil {
		return nil, err
	}
	return f.Store.GroupGetMany(ctx, group, fields)
}

func (f *failStore) GroupSet(ctx context.Context, group string, pairs map[string][]byte) error {
	if err := f.hit("hset"); err != nil {
		return err
	}
	return f.Store.GroupSet(ctx, group, pairs)
}

func (f *failStore) GroupDel(ctx context.Context, group string, fields ...string) (int64, error) {
	if err := f.hit("hdel"); err != nil {
		return 0, err
	}
	return f.Store.GroupDel(ctx, group, fields...)
}

func (f *failStore) GroupExists(ctx context.Context, group, field string) (bool, error) {
	if err := f.hit("hexists"); err != nil {
		return false, err
	}
	return f.Store.GroupExists(ctx, group, field)
}

func (f *failStore) GroupExpire(ctx context.Context, group string, ttl time.Duration) (bool, error) {
	if err := f.hit("expire"); err != nil {
		return false, err
	}
	return f.Store.GroupExpire(ctx, group, ttl)
}

// recHooks records every hook call.
type recHooks struct {
	mu            sync.Mutex
	groupExpired  []time.Duration
	refused       []string
	commitFailed  []error
	fallbacks     []string
	backendErrors []string
}

func (h *recHooks) GroupExpired(_ string, ttl time.Duration) {
	h.mu.Lock()
	h.groupExpired = append(h.groupExpired, ttl)
	h.mu.Unlock()
}

func (h *recHooks) SaveRefused(_, key string) {
	h.mu.Lock()
	h.refused = append(h.refused, key)
	h.mu.Unlock()
}

func (h *recHooks) CommitFailed(_ string, _, _ int, err error) {
	h.mu.Lock()
	h.commitFailed = append(h.commitFailed, err)
	h.mu.Unlock()
}

func (h *recHooks) DecodeFallback(key string) {
	h.mu.Lock()
	h.fallbacks = append(h.fallbacks, key)
	h.mu.Unlock()
}

func (h *recHooks) BackendError(op string, _ error) {
	h.mu.Lock()
	h.backendErrors = append(h.backendErrors, op)
	h.mu.Unlock()
}

var _ Hooks = (*recHooks)(nil)
