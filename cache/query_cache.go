package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCache is a bounded cache for nested-query results, keyed by a hash
// of the statement identifier and its argument values. It breaks repeated
// per-row round trips when many parent rows share the same child query.
type ResultCache struct {
	cache *lru.Cache[uint64, []any]
	mu    sync.RWMutex
}

func NewResultCache(size int) *ResultCache {
	cache, _ := lru.New[uint64, []any](size)
	return &ResultCache{cache: cache}
}

func (c *ResultCache) Get(key uint64) ([]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Get(key)
}

func (c *ResultCache) Set(key uint64, rows []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, rows)
}

func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
