package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/mkmccarty/CoopBoard/src/metrics"
	"golang.org/x/sync/singleflight"
)

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

// Cache memoizes fetched values per key. Concurrent normal reads of a missing
// key share one fetch. A forced read always fetches and replaces the entry.
// Entries are replaced whole, so a reader racing a forced refresh observes
// either the old value or the new one.
type Cache[T any] struct {
	name    string
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries map[string]*cacheEntry[T]
	group   singleflight.Group
}

// NewCache creates a cache. A zero ttl keeps entries until invalidated.
func NewCache[T any](name string, ttl time.Duration, m *metrics.Metrics) *Cache[T] {
	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		entries: make(map[string]*cacheEntry[T]),
	}
}

// Get returns the cached value for key or calls fetch to fill it.
// Failed fetches are not cached.
func (c *Cache[T]) Get(ctx context.Context, key string, force bool, fetch func(context.Context) (T, error)) (T, error) {
	if force {
		c.observe("force")
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.store(key, v)
		return v, nil
	}

	if v, ok := c.lookup(key); ok {
		c.observe("hit")
		return v, nil
	}
	c.observe("miss")

	// The shared fetch outlives any one caller; each caller only stops waiting on its own ctx.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			var zero T
			return zero, r.Err
		}
		v, _ := r.Val.(T)
		return v, nil
	}
}

// Invalidate drops the entry for key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry[T])
	c.mu.Unlock()
}

// Len is the number of cached entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) lookup(key string) (T, bool) {
	c.mu.Lock()
	e := c.entries[key]
	c.mu.Unlock()
	if e == nil || (c.ttl > 0 && c.now().Sub(e.fetchedAt) > c.ttl) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *Cache[T]) store(key string, v T) {
	e := &cacheEntry[T]{value: v, fetchedAt: c.now()}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *Cache[T]) observe(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(c.name, result).Inc()
	}
}
