package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/remap/statement"
)

func TestPlanCacheGetOrBuild(t *testing.T) {
	c := NewPlanCache(4)
	builds := 0
	build := func() (*Plan, error) {
		builds++
		return &Plan{SQL: "SELECT 1", Params: []statement.ParamDescriptor{{Property: "id"}}}, nil
	}

	first, err := c.GetOrBuild(1, build)
	require.NoError(t, err)
	second, err := c.GetOrBuild(1, build)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
}

func TestPlanCacheBuildError(t *testing.T) {
	c := NewPlanCache(4)
	boom := errors.New("boom")
	_, err := c.GetOrBuild(1, func() (*Plan, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	// Failures are not cached.
	plan, err := c.GetOrBuild(1, func() (*Plan, error) { return &Plan{SQL: "ok"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", plan.SQL)
}

func TestPlanCacheEviction(t *testing.T) {
	c := NewPlanCache(2)
	c.Set(1, &Plan{SQL: "a"})
	c.Set(2, &Plan{SQL: "b"})
	c.Set(3, &Plan{SQL: "c"})
	_, ok := c.Get(1)
	assert.False(t, ok, "oldest entry evicts at capacity")
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestResultCache(t *testing.T) {
	c := NewResultCache(2)
	c.Set(7, []any{"a", "b"})
	rows, ok := c.Get(7)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, rows)

	c.Purge()
	_, ok = c.Get(7)
	assert.False(t, ok)
}
