package service

import (
	"sync"
	"time"
)

// ttlCache holds one slice of ledger side data for a fixed duration.
type ttlCache[T any] struct {
	mu       sync.RWMutex
	items    []T
	cachedAt time.Time
	ttl      time.Duration
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{ttl: ttl}
}

func (c *ttlCache[T]) Get() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.items == nil || c.ttl <= 0 || time.Since(c.cachedAt) > c.ttl {
		return nil
	}
	return c.items
}

func (c *ttlCache[T]) Set(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.cachedAt = time.Now()
}

func (c *ttlCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
