package poolcache

import (
	"math"
	"time"
)

// DefaultTTL is the expiration used when a caller asks for "the default".
const DefaultTTL = 24 * time.Hour

// Forever passed to FlatCache.Set/SetMultiple stores keys without expiration.
// Any other negative TTL normalizes to 0 (expire immediately).
const Forever time.Duration = math.MinInt64

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
