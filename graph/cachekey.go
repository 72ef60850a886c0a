package graph

import (
	"fmt"
	"strings"

	"github.com/Konsultn-Engineering/remap/utils"
)

// CacheKey identifies the logical entity a row belongs to. It is an
// order-sensitive composite of the values fed to its builder, comparable
// and usable as a map key. The zero value is NilKey, the sentinel for
// "no identity": rows carrying it never deduplicate against each other.
type CacheKey struct {
	count int
	hash  uint64
	repr  string
}

// NilKey is the no-identity sentinel.
var NilKey = CacheKey{}

// Nil reports whether the key carries no identity.
func (k CacheKey) Nil() bool { return k == NilKey }

func (k CacheKey) String() string {
	if k.Nil() {
		return "<nil-key>"
	}
	return fmt.Sprintf("%d:%x", k.count, k.hash)
}

// Combine qualifies a child key by its parent so that equal children
// under different parents stay distinct. Either side being the sentinel
// collapses the result to the sentinel.
func Combine(child, parent CacheKey) CacheKey {
	if child.Nil() || parent.Nil() {
		return NilKey
	}
	return CacheKey{
		count: child.count + parent.count,
		hash:  utils.Mix64(child.hash, parent.hash),
		repr:  child.repr + "\x1e" + parent.repr,
	}
}

// KeyBuilder accumulates updates into a CacheKey. The first update is
// conventionally the row map id and later updates arrive in column/value
// pairs, so a key built from fewer than two updates carries no row data
// and degrades to the sentinel.
type KeyBuilder struct {
	count int
	hash  uint64
	parts strings.Builder
}

func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{hash: utils.U64("cachekey")}
}

func (b *KeyBuilder) Update(v any) {
	b.count++
	b.hash = utils.Mix64(b.hash, utils.HashValue(v))
	if b.parts.Len() > 0 {
		b.parts.WriteByte('\x1f')
	}
	fmt.Fprintf(&b.parts, "%T|%v", v, v)
}

// Count returns the number of updates applied so far.
func (b *KeyBuilder) Count() int { return b.count }

// Key finalizes the accumulated state.
func (b *KeyBuilder) Key() CacheKey {
	if b.count < 2 {
		return NilKey
	}
	return CacheKey{count: b.count, hash: b.hash, repr: b.parts.String()}
}
