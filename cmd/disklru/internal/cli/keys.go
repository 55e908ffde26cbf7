package cli

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/calvinalkan/disklru/pkg/disklru"
)

// keyMapper turns user supplied keys into cache keys.
//
// With hashing on, any string maps to the 16 hex digits of its xxhash64,
// which always satisfies the cache key pattern. Otherwise keys pass through
// and must already be valid.
type keyMapper struct {
	hash bool
}

func (m keyMapper) cacheKey(userKey string) (string, error) {
	if m.hash {
		return hashKey(userKey), nil
	}

	if !disklru.ValidKey(userKey) {
		return "", fmt.Errorf("%w %q: keys must be 1-120 chars of [a-z0-9_-] (or use --hash-keys)", ErrInvalidKey, userKey)
	}

	return userKey, nil
}

func hashKey(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
