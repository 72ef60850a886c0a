package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilderSentinel(t *testing.T) {
	b := NewKeyBuilder()
	b.Update("someMap")
	assert.True(t, b.Key().Nil(), "the map id alone carries no identity")

	b.Update("id")
	b.Update(42)
	assert.False(t, b.Key().Nil())
}

func TestKeyEquality(t *testing.T) {
	build := func(values ...any) CacheKey {
		b := NewKeyBuilder()
		for _, v := range values {
			b.Update(v)
		}
		return b.Key()
	}

	assert.Equal(t, build("m", "id", 1), build("m", "id", 1))
	assert.NotEqual(t, build("m", "id", 1), build("m", "id", 2))
	assert.NotEqual(t, build("m", "id", 1), build("m", 1, "id"), "order matters")
	assert.NotEqual(t, build("m", "id", 1), build("m", "id", "1"), "typed values do not collapse")
}

func TestCombine(t *testing.T) {
	b := NewKeyBuilder()
	b.Update("child")
	b.Update("id")
	b.Update(7)
	child := b.Key()

	b = NewKeyBuilder()
	b.Update("parent")
	b.Update("id")
	b.Update(1)
	parent := b.Key()

	combined := Combine(child, parent)
	assert.False(t, combined.Nil())
	assert.NotEqual(t, child, combined)

	assert.True(t, Combine(child, NilKey).Nil())
	assert.True(t, Combine(NilKey, parent).Nil())

	b = NewKeyBuilder()
	b.Update("parent")
	b.Update("id")
	b.Update(2)
	otherParent := b.Key()
	assert.NotEqual(t, Combine(child, parent), Combine(child, otherParent),
		"same child under different parents stays distinct")
}
