package poolcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/unkn0wn-root/poolcache/store"
)

// FlatCache is the simple get/set/delete/has/clear contract. Every key is a
// backend string with its own TTL. Safe for concurrent use when the Store is.
type FlatCache struct {
	store store.Store
	log   Logger
	hooks Hooks
}

func NewFlatCache(s store.Store, opts FlatOptions) (*FlatCache, error) {
	if s == nil {
		return nil, errors.New("poolcache: store is required")
	}
	return &FlatCache{
		store: s,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

// Get returns the value stored under key, or def on a miss. Backend failures are
// logged and also yield def; the error is reserved for invalid keys.
func (c *FlatCache) Get(ctx context.Context, key string, def Value) (Value, error) {
	if err := ValidateKey(key); err != nil {
		return def, err
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.backendError("get", key, err)
		return def, nil
	}
	if !ok {
		return def, nil
	}
	return c.decode(key, raw, def), nil
}

// GetMultiple returns a value for every requested key, def for misses.
func (c *FlatCache) GetMultiple(ctx context.Context, keys []string, def Value) (map[string]Value, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	out := make(map[string]Value, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	raws, err := c.store.MGet(ctx, keys)
	if err != nil {
		c.backendError("mget", fmt.Sprintf("%d keys", len(keys)), err)
		raws = nil
	}
	for i, k := range keys {
		if i < len(raws) && raws[i] != nil {
			out[k] = c.decode(k, raws[i], def)
		} else {
			out[k] = def
		}
	}
	return out, nil
}

// Set stores value under key. ttl == Forever leaves the key without expiration;
// otherwise a separate EXPIRE follows the write, with negative TTLs normalized
// to 0 (the key is removed right after being written).
func (c *FlatCache) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("poolcache: set: %w", err)
	}
	if ttl == Forever {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	if _, err := c.store.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("poolcache: expire: %w", err)
	}
	return nil
}

// SetMultiple validates every pair, then writes all of them and their TTLs in one
// atomic backend unit. An empty set is rejected with ErrInvalidValueSet.
func (c *FlatCache) SetMultiple(ctx context.Context, values map[string]Value, ttl time.Duration) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidValueSet)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic first failure

	pairs := make(map[string][]byte, len(values))
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			return &KeySetError{Index: -1, Key: k, Set: ErrInvalidValueSet, Err: err}
		}
		raw, err := encodeValue(values[k])
		if err != nil {
			return &KeySetError{Index: -1, Key: k, Set: ErrInvalidValueSet, Err: err}
		}
		pairs[k] = raw
	}

	expire := ttl != Forever
	if expire && ttl < 0 {
		ttl = 0
	}
	if err := c.store.MSet(ctx, pairs, ttl, expire); err != nil {
		return fmt.Errorf("poolcache: set multiple: %w", err)
	}
	return nil
}

func (c *FlatCache) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("poolcache: delete: %w", err)
	}
	return nil
}

// DeleteMultiple removes every key; an empty list is a no-op.
func (c *FlatCache) DeleteMultiple(ctx context.Context, keys []string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if _, err := c.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("poolcache: delete multiple: %w", err)
	}
	return nil
}

// Has reports whether key exists. Meant for cache warming: the key may vanish
// between Has and a later Get. Backend failures read as false.
func (c *FlatCache) Has(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		c.backendError("exists", key, err)
		return false, nil
	}
	return ok, nil
}

// Clear wipes the active namespace, or every namespace when all is true.
func (c *FlatCache) Clear(ctx context.Context, all bool) error {
	scope := store.ScopeCurrent
	if all {
		scope = store.ScopeAll
	}
	if err := c.store.Flush(ctx, scope); err != nil {
		return fmt.Errorf("poolcache: clear %s: %w", scope, err)
	}
	c.log.Info("cache cleared", Fields{"scope": scope.String()})
	return nil
}

// TTL returns the remaining lifetime of key: store.NoTTL when it has none,
// store.Missing when the key does not exist.
func (c *FlatCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	d, err := c.store.TTL(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("poolcache: ttl: %w", err)
	}
	return d, nil
}

func (c *FlatCache) decode(key string, raw []byte, def Value) Value {
	v, fallback := decodeStored(raw)
	if fallback {
		c.log.Debug("payload without framing returned as string", Fields{"key": shorten(key), "len": len(raw)})
		c.hooks.DecodeFallback(key)
	}
	if v.IsAbsent() {
		return def
	}
	return v
}

func (c *FlatCache) backendError(op, key string, err error) {
	c.log.Error("backend call failed", Fields{"op": op, "key": shorten(key), "err": err})
	c.hooks.BackendError(op, err)
}
