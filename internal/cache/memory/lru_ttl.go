package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry[V any] struct {
	value V
	size  int
}

// LRUTTL is a threadsafe LRU cache with a shared TTL and an optional byte budget.
type LRUTTL[K comparable, V any] struct {
	mu         sync.Mutex
	lru        *expirable.LRU[K, entry[V]]
	maxBytes   int
	totalBytes atomic.Int64
}

func NewLRUTTL[K comparable, V any](maxEntries int, maxBytes int, ttl time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := &LRUTTL[K, V]{maxBytes: maxBytes}
	c.lru = expirable.NewLRU[K, entry[V]](maxEntries, func(_ K, e entry[V]) {
		c.totalBytes.Add(-int64(e.size))
	}, ttl)
	return c
}

func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	return e.value, true
}

func (c *LRUTTL[K, V]) Set(key K, value V, sizeBytes int) {
	if c == nil {
		return
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Add does not fire the eviction callback on overwrite.
	if old, ok := c.lru.Peek(key); ok {
		c.totalBytes.Add(-int64(old.size))
	}
	c.lru.Add(key, entry[V]{value: value, size: sizeBytes})
	c.totalBytes.Add(int64(sizeBytes))
	for c.maxBytes > 0 && c.totalBytes.Load() > int64(c.maxBytes) && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
}

func (c *LRUTTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

func (c *LRUTTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *LRUTTL[K, V]) Clear() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
