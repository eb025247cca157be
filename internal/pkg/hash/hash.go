package hash

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hash returns the 64-bit murmur3 hash of data. Bloom filter bit locations
// depend on it, so it must stay stable across releases.
func Hash(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// Key returns a compact cache key for s under prefix, e.g. "img:9f86d081884c7d65".
func Key(prefix, s string) string {
	return prefix + ":" + strconv.FormatUint(xxhash.Sum64String(s), 16)
}
