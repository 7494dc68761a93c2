package poolcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with
// hooks/async.
type Hooks interface {
	// Save applied a TTL to the whole pool; every field in it now shares ttl.
	GroupExpired(pool string, ttl time.Duration)

	// Save refused an expired entry and removed its key.
	SaveRefused(pool, key string)

	// Commit could not delete expired fields or write the batch.
	// written/deleted are the number of fields the failed step covered.
	CommitFailed(pool string, written, deleted int, err error)

	// A non-empty stored payload had no valid framing and was returned as a
	// literal string.
	DecodeFallback(key string)

	// A backend call failed and was converted into the method's fallback result.
	BackendError(op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) GroupExpired(string, time.Duration)   {}
func (NopHooks) SaveRefused(string, string)           {}
func (NopHooks) CommitFailed(string, int, int, error) {}
func (NopHooks) DecodeFallback(string)                {}
func (NopHooks) BackendError(string, error)           {}
