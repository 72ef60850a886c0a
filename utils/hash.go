package utils

import (
	"fmt"
	"hash/fnv"
)

// U64 returns the fnv-1a hash of a string.
func U64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Mix64 folds two hashes into one. Order-sensitive.
func Mix64(a, b uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(U64ToBytes(a))
	_, _ = h.Write(U64ToBytes(b))
	return h.Sum64()
}

func U64ToBytes(u uint64) []byte {
	return []byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	}
}

// HashValue hashes an arbitrary value through its %v form. Good enough for
// cache-key folding; identity-sensitive comparisons never rely on it alone.
func HashValue(v any) uint64 {
	if v == nil {
		return U64("<nil>")
	}
	return U64(fmt.Sprintf("%T|%v", v, v))
}
