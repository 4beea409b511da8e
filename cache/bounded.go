// Package cache provides the bounded caches used by the develop pipeline.
//
// The pipeline caches are deliberately simple: a capped map that is cleared
// wholesale when full. Entries are large (warped images, uploaded source
// planes, parsed LUTs) and hit patterns are bursty — the user tweaks one
// photo, producing many hits on few keys, then moves on. LRU bookkeeping
// buys nothing here, and a wholesale clear bounds memory exactly.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Hash64 computes the FNV-1a hash of a byte slice.
// Used for content-addressed cache keys (source image planes, LUT data).
func Hash64(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b) // fnv.Write never returns an error
	return h.Sum64()
}

// HashString computes the FNV-1a hash of a string.
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Bounded is a thread-safe cache holding at most Capacity entries.
//
// When an insert would exceed capacity, the whole cache is cleared first.
// This keeps the worst-case footprint at exactly Capacity entries and
// avoids eviction bookkeeping on the hot path.
//
// Thread safety: Bounded is safe for concurrent use.
type Bounded[K comparable, V any] struct {
	mu       sync.RWMutex
	entries  map[K]V
	capacity int

	// Statistics (atomic for zero-allocation reads)
	hits   atomic.Uint64
	misses atomic.Uint64
	clears atomic.Uint64
}

// DefaultCapacity is used when NewBounded is given a non-positive capacity.
const DefaultCapacity = 30

// NewBounded creates a bounded cache holding at most capacity entries.
// If capacity <= 0, DefaultCapacity is used.
func NewBounded[K comparable, V any](capacity int) *Bounded[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bounded[K, V]{
		entries:  make(map[K]V, capacity),
		capacity: capacity,
	}
}

// Get retrieves a cached value by key.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Bounded[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value. If the cache is full and the key is not already
// present, all entries are dropped before the insert.
//
// The value is stored as-is (not copied). Callers should not modify it
// after caching.
func (c *Bounded[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.entries = make(map[K]V, c.capacity)
		c.clears.Add(1)
	}
	c.entries[key] = value
}

// GetOrCreate returns the cached value for key, computing and storing it
// with create on a miss. The create function runs with the lock held so a
// burst of identical requests computes the value once.
func (c *Bounded[K, V]) GetOrCreate(key K, create func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check after acquiring the write lock.
	if v, ok := c.entries[key]; ok {
		return v
	}

	v := create()
	if len(c.entries) >= c.capacity {
		c.entries = make(map[K]V, c.capacity)
		c.clears.Add(1)
	}
	c.entries[key] = v
	return v
}

// Delete removes an entry. Returns true if the entry was present.
func (c *Bounded[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes all entries.
func (c *Bounded[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]V, c.capacity)
	c.mu.Unlock()
}

// Len returns the current number of entries.
func (c *Bounded[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *Bounded[K, V]) Capacity() int {
	return c.capacity
}

// Stats holds cache counters.
type Stats struct {
	Len      int
	Capacity int
	Hits     uint64
	Misses   uint64
	HitRate  float64
	Clears   uint64
}

// Stats returns current cache statistics.
func (c *Bounded[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:      c.Len(),
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		HitRate:  hitRate,
		Clears:   c.clears.Load(),
	}
}
