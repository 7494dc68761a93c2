package poolcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/poolcache/store"
)

var (
	ErrInvalidKey      = errors.New("poolcache: invalid key")
	ErrInvalidKeySet   = errors.New("poolcache: invalid key set")
	ErrInvalidValue    = errors.New("poolcache: invalid value")
	ErrInvalidValueSet = errors.New("poolcache: invalid value set")
	ErrCodecMismatch   = errors.New("poolcache: codec mismatch")
	ErrCommitFailed    = errors.New("poolcache: commit failed")

	// Backend categories, defined by package store.
	ErrNotConnected         = store.ErrNotConnected
	ErrBackendUnavailable   = store.ErrBackendUnavailable
	ErrIntegrityCheckFailed = store.ErrIntegrityCheckFailed
)

// KeyError reports why a key was rejected. errors.Is(err, ErrInvalidKey) holds.
type KeyError struct {
	Key    string
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("poolcache: invalid key %q: %s", shorten(e.Key), e.Reason)
}

func (e *KeyError) Unwrap() error { return ErrInvalidKey }

// KeySetError names the member of a batch that failed validation.
// It unwraps to both the batch category (ErrInvalidKeySet or ErrInvalidValueSet)
// and the member's own error.
type KeySetError struct {
	Index int // position in the input slice; -1 for map inputs
	Key   string
	Set   error
	Err   error
}

func (e *KeySetError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: member %d (%q): %v", e.Set, e.Index, shorten(e.Key), e.Err)
	}
	return fmt.Sprintf("%v: member %q: %v", e.Set, shorten(e.Key), e.Err)
}

func (e *KeySetError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Set != nil {
		errs = append(errs, e.Set)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// shorten keeps oversized keys out of error strings and logs.
func shorten(k string) string {
	const limit = 64
	if len(k) <= limit {
		return k
	}
	return fmt.Sprintf("%s...(%d bytes)", k[:limit], len(k))
}
