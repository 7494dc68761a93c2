package poolcache

import "time"

// NoExpiration is the TTL of an entry that never had an expiration requested.
const NoExpiration int64 = -1

// now is the clock used for expiration; replaced in tests.
var now = time.Now

// Entry is one cache value plus its expiration metadata and hit/miss status.
// Construct with NewEntry; the zero Entry is already expired.
type Entry struct {
	key   string
	value Value
	hit   bool

	// ttl is seconds-to-live, a unix timestamp when isTimestamp, or NoExpiration.
	ttl         int64
	isTimestamp bool
	// expiresAt is materialized when ExpiresAfter/ExpiresAt is called. Zero = unset.
	expiresAt time.Time
}

func NewEntry(key string) *Entry {
	return &Entry{key: key, ttl: NoExpiration}
}

func (e *Entry) Key() string { return e.key }

// Get returns the current value; absent if never set.
func (e *Entry) Get() Value { return e.value }

// Set stores v verbatim. Hit and expiration state are unchanged.
func (e *Entry) Set(v Value) *Entry {
	e.value = v
	return e
}

func (e *Entry) Hit() *Entry {
	e.hit = true
	return e
}

func (e *Entry) Miss() *Entry {
	e.hit = false
	return e
}

func (e *Entry) IsHit() bool { return e.hit }

// ExpiresAfter sets a relative TTL. d <= 0 expires the entry immediately (ttl 0).
// Sub-second remainders round up so a positive d never reads as "expired".
func (e *Entry) ExpiresAfter(d time.Duration) *Entry {
	t := now()
	e.isTimestamp = false
	if d <= 0 {
		e.ttl = 0
		e.expiresAt = t
		return e
	}
	e.ttl = int64((d + time.Second - 1) / time.Second)
	e.expiresAt = t.Add(d)
	return e
}

// ExpiresAfterDefault applies DefaultTTL.
func (e *Entry) ExpiresAfterDefault() *Entry {
	return e.ExpiresAfter(DefaultTTL)
}

// ExpiresAt sets an absolute expiration. An instant that is not in the future
// clamps the TTL to 0 (expired). The zero time.Time selects DefaultTTL.
func (e *Entry) ExpiresAt(t time.Time) *Entry {
	if t.IsZero() {
		return e.ExpiresAfterDefault()
	}
	e.isTimestamp = true
	e.expiresAt = t
	if !t.After(now()) {
		e.ttl = 0
		return e
	}
	e.ttl = t.Unix()
	return e
}

// IsExpired reports whether an expiration was set and has been reached.
func (e *Entry) IsExpired() bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now())
}

// TTL returns the raw ttl: seconds, a unix timestamp (see IsTimestamp), or NoExpiration.
func (e *Entry) TTL() int64 { return e.ttl }

func (e *Entry) IsTimestamp() bool { return e.isTimestamp }

// ExpiresAtTime returns the materialized expiration instant; zero when unset.
func (e *Entry) ExpiresAtTime() time.Time { return e.expiresAt }

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	c := *e
	c.value = e.value.clone()
	return &c
}

// expired is the persistence check: ttl 0 or a reached expiration instant.
func (e *Entry) expired() bool {
	return e.ttl == 0 || e.IsExpired()
}

// remaining is how long the backend should keep the entry, rounded up to whole
// seconds. 0 means no TTL to apply.
func (e *Entry) remaining(at time.Time) time.Duration {
	switch {
	case e.ttl <= 0:
		return 0
	case e.isTimestamp:
		d := e.expiresAt.Sub(at)
		if d <= 0 {
			return 0
		}
		return (d + time.Second - 1) / time.Second * time.Second
	default:
		return time.Duration(e.ttl) * time.Second
	}
}
