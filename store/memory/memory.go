// Package memory is an in-process store.Store with Redis-like semantics:
// flat keys and groups share one keyspace, and TTLs apply per key (so per whole
// group). Expired keys are removed lazily on access and by an optional sweep loop.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/poolcache/store"
)

type item struct {
	flat  []byte
	group map[string][]byte // non-nil => the key is a group
	exp   time.Time         // zero => no TTL
}

func (it *item) expired(now time.Time) bool {
	return !it.exp.IsZero() && !now.Before(it.exp)
}

// Memory has a single namespace, so both flush scopes wipe everything.
type Memory struct {
	mu     sync.Mutex
	m      map[string]*item
	closed bool
	now    func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ store.Store = (*Memory)(nil)

// New returns an empty store. cleanupInterval > 0 starts a sweep loop that drops
// expired keys; Close stops it.
func New(cleanupInterval time.Duration) *Memory {
	s := &Memory{m: make(map[string]*item), now: time.Now}
	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

// SetClock replaces the time source. Intended for tests.
func (s *Memory) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Sweep removes every expired key.
func (s *Memory) Sweep() {
	s.mu.Lock()
	now := s.now()
	for k, it := range s.m {
		if it.expired(now) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}

// lookup returns the live item for key; caller holds mu.
func (s *Memory) lookup(key string) *item {
	it, ok := s.m[key]
	if !ok {
		return nil
	}
	if it.expired(s.now()) {
		delete(s.m, key)
		return nil
	}
	return it
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, store.ErrNotConnected
	}
	it := s.lookup(key)
	if it == nil || it.group != nil {
		return nil, false, nil
	}
	return clone(it.flat), true, nil
}

func (s *Memory) MGet(_ context.Context, keys []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrNotConnected
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if it := s.lookup(k); it != nil && it.group == nil {
			out[i] = clone(it.flat)
		}
	}
	return out, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrNotConnected
	}
	s.m[key] = &item{flat: clone(value)}
	return nil
}

func (s *Memory) MSet(_ context.Context, pairs map[string][]byte, ttl time.Duration, expire bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrNotConnected
	}
	now := s.now()
	for k, v := range pairs {
		if expire && ttl <= 0 {
			delete(s.m, k)
			continue
		}
		it := &item{flat: clone(v)}
		if expire {
			it.exp = now.Add(ttl)
		}
		s.m[k] = it
	}
	return nil
}

func (s *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrNotConnected
	}
	var n int64
	for _, k := range keys {
		if s.lookup(k) != nil {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

func (s *Memory) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrNotConnected
	}
	return s.lookup(key) != nil, nil
}

func (s *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrNotConnected
	}
	it := s.lookup(key)
	if it == nil {
		return false, nil
	}
	if ttl <= 0 {
		delete(s.m, key)
		return true, nil
	}
	it.exp = s.now().Add(ttl)
	return true, nil
}

func (s *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrNotConnected
	}
	it := s.lookup(key)
	switch {
	case it == nil:
		return store.Missing, nil
	case it.exp.IsZero():
		return store.NoTTL, nil
	default:
		return it.exp.Sub(s.now()), nil
	}
}

func (s *Memory) Flush(_ context.Context, _ store.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrNotConnected
	}
	s.m = make(map[string]*item)
	return nil
}

func (s *Memory) GroupGet(_ context.Context, group, field string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, store.ErrNotConnected
	}
	it := s.lookup(group)
	if it == nil || it.group == nil {
		return nil, false, nil
	}
	v, ok := it.group[field]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Memory) GroupGetMany(_ context.Context, group string, fields []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrNotConnected
	}
	out := make(map[string][]byte, len(fields))
	it := s.lookup(group)
	if it == nil || it.group == nil {
		return out, nil
	}
	for _, f := range fields {
		if v, ok := it.group[f]; ok {
			out[f] = clone(v)
		}
	}
	return out, nil
}

func (s *Memory) GroupGetAll(_ context.Context, group string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrNotConnected
	}
	it := s.lookup(group)
	if it == nil || it.group == nil {
		return map[string][]byte{}, nil
	}
	out := make(map[string][]byte, len(it.group))
	for f, v := range it.group {
		out[f] = clone(v)
	}
	return out, nil
}

func (s *Memory) GroupKeys(_ context.Context, group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrNotConnected
	}
	it := s.lookup(group)
	if it == nil || it.group == nil {
		return []string{}, nil
	}
	keys := make([]string, 0, len(it.group))
	for f := range it.group {
		keys = append(keys, f)
	}
	sort.Strings(keys)
	return keys, nil
}

// GroupSet keeps the group's existing TTL, as HSET does.
func (s *Memory) GroupSet(_ context.Context, group string, pairs map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrNotConnected
	}
	if len(pairs) == 0 {
		return nil
	}
	it := s.lookup(group)
	if it == nil || it.group == nil {
		it = &item{group: make(map[string][]byte, len(pairs))}
		s.m[group] = it
	}
	for f, v := range pairs {
		it.group[f] = clone(v)
	}
	return nil
}

func (s *Memory) GroupDel(_ context.Context, group string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrNotConnected
	}
	it := s.lookup(group)
	if it == nil || it.group == nil {
		return 0, nil
	}
	var n int64
	for _, f := range fields {
		if _, ok := it.group[f]; ok {
			delete(it.group, f)
			n++
		}
	}
	if len(it.group) == 0 {
		delete(s.m, group) // empty hashes do not exist
	}
	return n, nil
}

func (s *Memory) GroupExists(_ context.Context, group, field string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrNotConnected
	}
	it := s.lookup(group)
	if it == nil || it.group == nil {
		return false, nil
	}
	_, ok := it.group[field]
	return ok, nil
}

func (s *Memory) GroupExpire(ctx context.Context, group string, ttl time.Duration) (bool, error) {
	return s.Expire(ctx, group, ttl)
}

func (s *Memory) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrNotConnected
	}
	return nil
}

// Close stops the sweep loop and rejects further calls with store.ErrNotConnected.
func (s *Memory) Close(context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
