package datastruct

import (
	"sync"
	"time"
)

// ttlEntry pairs a cached value with its expiry instant.
type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e ttlEntry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// TTLCache is a small generic expiring cache keyed by any comparable type.
// The reverse-DNS resolver keys it by netip.Addr. Expiry is passive: stale
// entries are dropped on Get, and Sweep removes the rest when called.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{entries: make(map[K]ttlEntry[V])}
}

// Set stores value under key. A ttl of 0 or less means no expiry.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = ttlEntry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Get returns the live value for key, or the zero value and false when the
// key is absent or expired. Expired entries are deleted on the spot.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if entry.expired(now) {
		c.mu.Lock()
		// Re-check under the write lock: the entry may have been refreshed
		// while we waited.
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}

	return entry.value, true
}

// Len reports the number of entries, counting not-yet-swept expired ones.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep deletes every expired entry.
func (c *TTLCache[K, V]) Sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// StartJanitor sweeps on the given interval until the stop channel closes.
func (c *TTLCache[K, V]) StartJanitor(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
