package poolcache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/unkn0wn-root/poolcache/store"
)

const (
	poolPrefix  = "Cache_Pool_"
	defaultPool = "DEFAULT_Cache_Pool"
)

// PoolName returns the backend group that holds a pool's entries.
func PoolName(suffix string) string {
	if suffix == "" {
		return defaultPool
	}
	return poolPrefix + suffix
}

// Pool is an item pool whose entries live as fields of a single backend group.
//
// The backend can only expire whole groups, so an entry saved with a TTL sets
// the lifetime of every entry in the pool. Entries that must expire
// independently belong in separate pools or in a FlatCache.
//
// A Pool keeps deferred entries in memory until Commit. It is not safe for
// concurrent use.
type Pool struct {
	store    store.Store
	name     string
	log      Logger
	hooks    Hooks
	deferred map[string]*Entry
}

func NewPool(s store.Store, opts PoolOptions) (*Pool, error) {
	if s == nil {
		return nil, errors.New("poolcache: store is required")
	}
	return &Pool{
		store:    s,
		name:     PoolName(opts.Name),
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		deferred: make(map[string]*Entry),
	}, nil
}

func (p *Pool) Name() string { return p.name }

// Deferred returns the number of staged entries.
func (p *Pool) Deferred() int { return len(p.deferred) }

// GetItem returns an entry for key, never nil. Staged entries are served from
// memory; an expired staged entry reads as a miss. Backend failures read as a
// miss too; the error is reserved for invalid keys.
func (p *Pool) GetItem(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if e, ok := p.staged(key); ok {
		return e, nil
	}
	raw, ok, err := p.store.GroupGet(ctx, p.name, key)
	if err != nil {
		p.backendError("hget", key, err)
		return NewEntry(key), nil
	}
	if !ok {
		return NewEntry(key), nil
	}
	return p.fromStored(key, raw), nil
}

// GetItems returns an entry for every requested key. Keys that are not staged
// are fetched in one backend call.
func (p *Pool) GetItems(ctx context.Context, keys []string) (map[string]*Entry, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	out := make(map[string]*Entry, len(keys))
	var fetch []string
	for _, k := range keys {
		if _, dup := out[k]; dup {
			continue
		}
		if e, ok := p.staged(k); ok {
			out[k] = e
			continue
		}
		out[k] = NewEntry(k)
		fetch = append(fetch, k)
	}
	if len(fetch) == 0 {
		return out, nil
	}
	raws, err := p.store.GroupGetMany(ctx, p.name, fetch)
	if err != nil {
		p.backendError("hmget", fmt.Sprintf("%d keys", len(fetch)), err)
		return out, nil
	}
	for k, raw := range raws {
		if _, want := out[k]; want {
			out[k] = p.fromStored(k, raw)
		}
	}
	return out, nil
}

// HasItem reports whether key is staged and fresh or present in the backend.
// The answer may be stale by the time a following GetItem runs.
func (p *Pool) HasItem(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	if e, ok := p.deferred[key]; ok {
		return !e.expired(), nil
	}
	ok, err := p.store.GroupExists(ctx, p.name, key)
	if err != nil {
		p.backendError("hexists", key, err)
		return false, nil
	}
	return ok, nil
}

// Save persists e immediately. An expired entry is not written: its field is
// removed and Save reports false. A positive TTL is applied to the whole pool.
func (p *Pool) Save(ctx context.Context, e *Entry) (bool, error) {
	if e == nil {
		return false, fmt.Errorf("%w: nil entry", ErrInvalidValue)
	}
	if err := ValidateKey(e.key); err != nil {
		return false, err
	}
	if e.expired() {
		delete(p.deferred, e.key)
		if _, err := p.store.GroupDel(ctx, p.name, e.key); err != nil {
			p.backendError("hdel", e.key, err)
		}
		p.log.Debug("expired entry not saved", Fields{"pool": p.name, "key": shorten(e.key)})
		p.hooks.SaveRefused(p.name, e.key)
		return false, nil
	}
	raw, err := encodeValue(e.value)
	if err != nil {
		return false, err
	}
	if err := p.store.GroupSet(ctx, p.name, map[string][]byte{e.key: raw}); err != nil {
		p.backendError("hset", e.key, err)
		return false, nil
	}
	if d := e.remaining(now()); d > 0 {
		p.log.Warn("ttl applied to whole pool", Fields{"pool": p.name, "key": shorten(e.key), "ttl": d})
		if _, err := p.store.GroupExpire(ctx, p.name, d); err != nil {
			p.backendError("expire", p.name, err)
			return false, nil
		}
		p.hooks.GroupExpired(p.name, d)
	}
	return true, nil
}

// SaveDeferred stages a copy of e for the next Commit, replacing any staged
// entry with the same key. An expired entry is unstaged and reported as false.
// Key and value are validated here so Commit cannot fail on encoding.
func (p *Pool) SaveDeferred(e *Entry) (bool, error) {
	if e == nil {
		return false, fmt.Errorf("%w: nil entry", ErrInvalidValue)
	}
	if err := ValidateKey(e.key); err != nil {
		return false, err
	}
	if e.expired() {
		delete(p.deferred, e.key)
		return false, nil
	}
	if e.value.IsAbsent() {
		return false, fmt.Errorf("%w: absent", ErrInvalidValue)
	}
	p.deferred[e.key] = e.Clone()
	return true, nil
}

// Commit writes staged entries in one backend call and removes the fields of
// entries that expired while staged. The staging area is emptied whatever the
// outcome. Commit reports whether the write succeeded; nothing to write is a
// success. Per-entry TTLs are not applied.
func (p *Pool) Commit(ctx context.Context) bool {
	if len(p.deferred) == 0 {
		return true
	}
	var expired []string
	pairs := make(map[string][]byte, len(p.deferred))
	for k, e := range p.deferred {
		if e.expired() {
			expired = append(expired, k)
			continue
		}
		raw, err := encodeValue(e.value)
		if err != nil {
			// unreachable for entries accepted by SaveDeferred
			p.log.Error("staged entry not encodable", Fields{"pool": p.name, "key": shorten(k), "err": err})
			continue
		}
		pairs[k] = raw
	}
	clear(p.deferred)

	if len(expired) > 0 {
		sort.Strings(expired)
		if _, err := p.store.GroupDel(ctx, p.name, expired...); err != nil {
			p.log.Error("commit: delete expired failed", Fields{"pool": p.name, "count": len(expired), "err": err})
			p.hooks.CommitFailed(p.name, 0, len(expired), err)
		}
	}
	if len(pairs) == 0 {
		return true
	}
	if err := p.store.GroupSet(ctx, p.name, pairs); err != nil {
		p.log.Error("commit: write failed", Fields{"pool": p.name, "count": len(pairs), "err": err})
		p.hooks.CommitFailed(p.name, len(pairs), 0, err)
		return false
	}
	p.log.Debug("commit", Fields{"pool": p.name, "written": len(pairs), "deleted": len(expired)})
	return true
}

// DeleteItem removes key. A staged key is only unstaged, and the result is
// whether it is still staged (always false); the backend is not touched.
func (p *Pool) DeleteItem(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	if _, ok := p.deferred[key]; ok {
		delete(p.deferred, key)
		_, still := p.deferred[key]
		return still, nil
	}
	if _, err := p.store.GroupDel(ctx, p.name, key); err != nil {
		return false, fmt.Errorf("poolcache: delete item: %w", err)
	}
	return true, nil
}

// DeleteItems unstages the staged keys and removes every key from the backend.
func (p *Pool) DeleteItems(ctx context.Context, keys []string) (bool, error) {
	if err := validateKeys(keys); err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return true, nil
	}
	for _, k := range keys {
		delete(p.deferred, k)
	}
	if _, err := p.store.GroupDel(ctx, p.name, keys...); err != nil {
		return false, fmt.Errorf("poolcache: delete items: %w", err)
	}
	return true, nil
}

// Clear drops the whole pool and everything staged.
func (p *Pool) Clear(ctx context.Context) bool {
	clear(p.deferred)
	if _, err := p.store.Del(ctx, p.name); err != nil {
		p.backendError("del", p.name, err)
		return false
	}
	p.log.Info("pool cleared", Fields{"pool": p.name})
	return true
}

// Keys lists the keys stored in the backend, sorted. Staged entries are not
// included.
func (p *Pool) Keys(ctx context.Context) ([]string, error) {
	keys, err := p.store.GroupKeys(ctx, p.name)
	if err != nil {
		return nil, fmt.Errorf("poolcache: keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Dump returns every stored value in the pool, decoded.
func (p *Pool) Dump(ctx context.Context) (map[string]Value, error) {
	raws, err := p.store.GroupGetAll(ctx, p.name)
	if err != nil {
		return nil, fmt.Errorf("poolcache: dump: %w", err)
	}
	out := make(map[string]Value, len(raws))
	for k, raw := range raws {
		if v := p.decode(k, raw); !v.IsAbsent() {
			out[k] = v
		}
	}
	return out, nil
}

// Close commits pending entries. It does not close the store, which may be
// shared with other pools.
func (p *Pool) Close(ctx context.Context) error {
	n := len(p.deferred)
	if !p.Commit(ctx) {
		return fmt.Errorf("%w: %d pending entries in %s", ErrCommitFailed, n, p.name)
	}
	return nil
}

// staged returns a copy of the staged entry for key, flagged hit or miss.
func (p *Pool) staged(key string) (*Entry, bool) {
	e, ok := p.deferred[key]
	if !ok {
		return nil, false
	}
	c := e.Clone()
	if c.expired() {
		return c.Miss(), true
	}
	return c.Hit(), true
}

func (p *Pool) fromStored(key string, raw []byte) *Entry {
	e := NewEntry(key)
	v := p.decode(key, raw)
	if v.IsAbsent() {
		return e
	}
	return e.Set(v).Hit()
}

func (p *Pool) decode(key string, raw []byte) Value {
	v, fallback := decodeStored(raw)
	if fallback {
		p.log.Debug("payload without framing returned as string", Fields{"pool": p.name, "key": shorten(key), "len": len(raw)})
		p.hooks.DecodeFallback(key)
	}
	return v
}

func (p *Pool) backendError(op, key string, err error) {
	p.log.Error("backend call failed", Fields{"pool": p.name, "op": op, "key": shorten(key), "err": err})
	p.hooks.BackendError(op, err)
}
