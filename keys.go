package poolcache

import (
	"strings"
	"unicode"
)

// MaxKeyLength bounds key size in bytes.
const MaxKeyLength = 32 << 10

// ValidateKey checks a cache key: non-empty, at most MaxKeyLength bytes, and free
// of whitespace. Other characters (|, `, $, parentheses...) are stored verbatim.
func ValidateKey(key string) error {
	if key == "" {
		return &KeyError{Key: key, Reason: "empty"}
	}
	if len(key) > MaxKeyLength {
		return &KeyError{Key: key, Reason: "too long"}
	}
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return &KeyError{Key: key, Reason: "contains whitespace"}
	}
	return nil
}

// validateKeys checks every key before any backend call.
func validateKeys(keys []string) error {
	for i, k := range keys {
		if err := ValidateKey(k); err != nil {
			return &KeySetError{Index: i, Key: k, Set: ErrInvalidKeySet, Err: err}
		}
	}
	return nil
}
