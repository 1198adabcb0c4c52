package cache

import (
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is an LRU variant whose values carry an absolute expiry.
// Expired reads are misses; eviction happens lazily on access and via
// a periodic sweep.
type TTL[K comparable, V any] struct {
	inner *LRU[K, ttlEntry[V]]
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
}

// NewTTL creates a TTL cache sweeping every sweepInterval. A
// non-positive sweepInterval disables the background sweep. Stop must
// be called when the sweep is enabled.
func NewTTL[K comparable, V any](maxSize int, ttl, sweepInterval time.Duration) *TTL[K, V] {
	c := &TTL[K, V]{
		inner: NewLRU[K, ttlEntry[V]](maxSize),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Get returns the value for key unless absent or expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	entry, ok := c.inner.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(entry.expiresAt) {
		c.inner.Delete(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value with the cache's TTL from now.
func (c *TTL[K, V]) Set(key K, value V) {
	c.inner.Set(key, ttlEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete removes key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.inner.Delete(key)
}

// Len returns the entry count including not-yet-swept expired entries.
func (c *TTL[K, V]) Len() int {
	return c.inner.Len()
}

// Stop terminates the background sweep.
func (c *TTL[K, V]) Stop() {
	close(c.stop)
}

func (c *TTL[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep evicts expired entries in a single critical section so a
// concurrent Set refreshing a key cannot lose the fresh value to a
// stale expiry decision.
func (c *TTL[K, V]) sweep() {
	now := c.now()
	c.inner.mu.Lock()
	defer c.inner.mu.Unlock()
	for key, el := range c.inner.items {
		if now.After(el.Value.(*lruEntry[K, ttlEntry[V]]).value.expiresAt) {
			c.inner.order.Remove(el)
			delete(c.inner.items, key)
		}
	}
}
