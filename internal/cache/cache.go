package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey derives a stable key from the parts that determine a completion.
// Parts are length-prefixed so ("ab", "c") and ("a", "bc") never collide.
func CacheKey(parts ...string) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return "quadas:v1:" + hex.EncodeToString(h.Sum(nil))
}
