// Package store defines the backend abstraction used by poolcache.
//
// A Store exposes two keyspaces on the same backend:
//
//   - flat keys: one value per key, each with its own TTL (Redis STRING).
//   - groups: a named collection of fields sharing one key and therefore one
//     expiration clock (Redis HASH). GroupExpire always applies to the whole
//     group; there is no per-field expiration.
//
// Implementations MUST be byte-for-byte transparent: reads return exactly the bytes
// previously written. Framing and (de)serialization belong to poolcache.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned when the store has been closed or never connected.
	ErrNotConnected = errors.New("store: not connected")
	// ErrBackendUnavailable wraps transport failures (dial, timeout, reset).
	ErrBackendUnavailable = errors.New("store: backend unavailable")
	// ErrIntegrityCheckFailed is returned when the backend is reachable but not in
	// the expected state, e.g. the wrong logical database is selected.
	ErrIntegrityCheckFailed = errors.New("store: integrity check failed")
)

// Scope selects what Flush wipes.
type Scope int

const (
	// ScopeCurrent flushes only the active logical namespace (FLUSHDB).
	ScopeCurrent Scope = iota
	// ScopeAll flushes every namespace the backend manages (FLUSHALL).
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeCurrent:
		return "current"
	case ScopeAll:
		return "all"
	default:
		return "unknown"
	}
}

// Store is the backend consumed by FlatCache and Pool.
// Calls block until the backend round-trip completes.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// MGet returns one element per key, in order. Missing keys are nil.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// Set stores value without expiration.
	Set(ctx context.Context, key string, value []byte) error
	// MSet stores every pair and, when expire is true, applies ttl to each key,
	// all inside one atomic unit: either every pair and TTL lands or none does.
	MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration, expire bool) error
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Expire sets a TTL on key. ttl <= 0 removes the key immediately.
	// Returns false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining time to live; -1 when the key has no TTL and -2
	// (as a Duration) when it does not exist, mirroring Redis.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Flush(ctx context.Context, scope Scope) error

	// GroupGet reads one field. ok=false is the absent marker.
	GroupGet(ctx context.Context, group, field string) (value []byte, ok bool, err error)
	// GroupGetMany reads several fields. Missing fields are omitted from the map.
	GroupGetMany(ctx context.Context, group string, fields []string) (map[string][]byte, error)
	GroupGetAll(ctx context.Context, group string) (map[string][]byte, error)
	GroupKeys(ctx context.Context, group string) ([]string, error)
	GroupSet(ctx context.Context, group string, pairs map[string][]byte) error
	// GroupDel removes fields and returns how many existed.
	GroupDel(ctx context.Context, group string, fields ...string) (int64, error)
	GroupExists(ctx context.Context, group, field string) (bool, error)
	// GroupExpire expires the WHOLE group after ttl, including fields written
	// later. Returns false when the group does not exist.
	GroupExpire(ctx context.Context, group string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Missing marks a key that does not exist in TTL results.
const Missing time.Duration = -2

// NoTTL marks a key that exists without expiration in TTL results.
const NoTTL time.Duration = -1
