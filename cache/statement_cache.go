package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Konsultn-Engineering/remap/statement"
)

// Plan is the reusable part of a bound statement: the final text and the
// ordered parameter descriptors. Argument values are resolved per call.
type Plan struct {
	SQL    string
	Params []statement.ParamDescriptor
}

// PlanCache stores assembled plans keyed by statement fingerprint combined
// with the argument type. Only statements whose text does not depend on
// argument values are cacheable; dynamic statements are re-assembled.
type PlanCache struct {
	cache *lru.Cache[uint64, *Plan]
	mu    sync.RWMutex
}

func NewPlanCache(size int) *PlanCache {
	cache, _ := lru.New[uint64, *Plan](size)
	return &PlanCache{cache: cache}
}

func (c *PlanCache) Get(key uint64) (*Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Get(key)
}

func (c *PlanCache) Set(key uint64, plan *Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, plan)
}

// GetOrBuild returns the cached plan for key, building and caching it on a
// miss. The build runs outside the lock; assembly is pure, so a duplicate
// build under contention is harmless.
func (c *PlanCache) GetOrBuild(key uint64, build func() (*Plan, error)) (*Plan, error) {
	c.mu.RLock()
	if plan, ok := c.cache.Get(key); ok {
		c.mu.RUnlock()
		return plan, nil
	}
	c.mu.RUnlock()

	plan, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	c.cache.Add(key, plan)
	return plan, nil
}

func (c *PlanCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
