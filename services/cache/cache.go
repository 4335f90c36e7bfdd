package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache: miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// Key builds a memcache-safe key (no spaces or control characters, bounded
// length) for an arbitrary string such as a URL
func Key(prefix, raw string) string {
	sum := sha1.Sum([]byte(raw))
	return prefix + ":" + hex.EncodeToString(sum[:])
}
