// Package dnscache holds MX lookup results for the lifetime of a process.
// Results whose detail marks a transient failure are never stored, so the
// next lookup for that domain queries DNS again.
package dnscache

import (
	"slices"
	"sync"

	"github.com/optimode/mxprobe/types"
)

// Cache maps domain to its MX lookup result. It is unbounded: a batch run
// touches few distinct domains.
type Cache struct {
	mu           sync.RWMutex
	entries      map[string]types.MXResult
	nonCacheable map[string]struct{}
}

// New creates a cache that refuses results whose Detail is one of nonCacheable.
func New(nonCacheable ...string) *Cache {
	c := &Cache{
		entries:      make(map[string]types.MXResult),
		nonCacheable: make(map[string]struct{}, len(nonCacheable)),
	}
	for _, d := range nonCacheable {
		c.nonCacheable[d] = struct{}{}
	}
	return c
}

// Get returns the cached result for domain.
func (c *Cache) Get(domain string) (types.MXResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.entries[domain]
	if !ok {
		return types.MXResult{}, false
	}
	return clone(r), true
}

// Store caches r under domain unless r is non-cacheable.
// It reports whether the result was stored.
func (c *Cache) Store(domain string, r types.MXResult) bool {
	if !c.Cacheable(r) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = clone(r)
	return true
}

// Cacheable reports whether r may be kept.
func (c *Cache) Cacheable(r types.MXResult) bool {
	_, transient := c.nonCacheable[r.Detail]
	return !transient
}

// Len returns the number of entries in the cache (for diagnostics).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// clone copies the host slice so callers cannot mutate cached data.
func clone(r types.MXResult) types.MXResult {
	r.Hosts = slices.Clone(r.Hosts)
	return r
}
