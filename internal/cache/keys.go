package cache

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// HashKey maps a cache key to the 32 lower-case hex characters stores use
// as their key. It is the 128-bit MurmurHash3 (x64) of the key.
func HashKey(key string) string {
	h1, h2 := murmur3.Sum128([]byte(key))
	var sum [16]byte
	binary.BigEndian.PutUint64(sum[:8], h1)
	binary.BigEndian.PutUint64(sum[8:], h2)
	return hex.EncodeToString(sum[:])
}
