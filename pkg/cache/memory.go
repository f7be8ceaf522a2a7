// Package cache holds the recipe list between writes so the catalog page
// does not hit the record store on every view.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// MemoryCache keeps the list in process memory until it expires or a write
// invalidates it.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	gen     uint64
	recipes []recipe.Recipe
	expires time.Time
	warm    bool
}

// NewMemoryCache creates a cache whose entry lives for ttl. A zero ttl never
// expires.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) ([]recipe.Recipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.warm || (c.ttl > 0 && !c.now().Before(c.expires)) {
		return nil, false
	}
	return cloneList(c.recipes), true
}

func (c *MemoryCache) Generation(_ context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen, nil
}

// SetIfGeneration stores recipes unless Invalidate ran after gen was read.
func (c *MemoryCache) SetIfGeneration(_ context.Context, gen uint64, recipes []recipe.Recipe) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false, nil
	}
	c.recipes = cloneList(recipes)
	c.expires = c.now().Add(c.ttl)
	c.warm = true
	return true, nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.recipes = nil
	c.warm = false
	return nil
}

func cloneList(in []recipe.Recipe) []recipe.Recipe {
	out := make([]recipe.Recipe, len(in))
	for i, r := range in {
		r.Keywords = append([]string{}, r.Keywords...)
		out[i] = r
	}
	return out
}
