// Package disabled tracks location hashes that must be excluded from
// selection. Authoritative disable status lives outside this process; this
// cache is a bounded in-memory front for it: a monotonically growing set of
// confirmed-disabled hashes plus a small LRU of recently checked results
package disabled

import (
	"sync"

	"geopack/internal/platform/logger"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Status is the tri-state outcome of a cache check
type Status uint8

const (
	// StatusUnknown means the cache has no answer; consult the
	// authoritative source
	StatusUnknown Status = iota

	// StatusDisabled means the hash is confirmed disabled
	StatusDisabled

	// StatusNotDisabled means a recent check confirmed the hash is usable
	StatusNotDisabled
)

// recency cache size; small on purpose, it only absorbs repeat lookups
// between authoritative refreshes
const recentEntries = 4096

// Cache is safe for concurrent use. Locks are held for in-memory bookkeeping
// only, never across I/O
type Cache struct {
	mu       sync.RWMutex
	capacity int
	set      map[uint64]struct{}

	// recent maps hash -> disabled? for both positive and negative results;
	// the LRU is internally synchronized
	recent *lru.Cache[uint64, bool]
}

// New builds a cache that holds at most capacity confirmed-disabled hashes
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	recent, err := lru.New[uint64, bool](recentEntries)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}
	return &Cache{
		capacity: capacity,
		set:      make(map[uint64]struct{}),
		recent:   recent,
	}
}

// Check reports what the cache knows about h
func (c *Cache) Check(h uint64) Status {
	c.mu.RLock()
	_, hit := c.set[h]
	c.mu.RUnlock()
	if hit {
		return StatusDisabled
	}
	if disabled, ok := c.recent.Get(h); ok {
		if disabled {
			return StatusDisabled
		}
		return StatusNotDisabled
	}
	return StatusUnknown
}

// CheckBatch partitions hashes into confirmed-disabled and those needing an
// external lookup, in one pass. Hashes with a cached negative result land in
// neither slice
func (c *Cache) CheckBatch(hashes []uint64) (disabled, unknown []uint64) {
	for _, h := range hashes {
		switch c.Check(h) {
		case StatusDisabled:
			disabled = append(disabled, h)
		case StatusUnknown:
			unknown = append(unknown, h)
		}
	}
	return disabled, unknown
}

// MarkDisabled adds h to the disabled set. Once the set is at capacity the
// set insert becomes a no-op, but the recency entry is still recorded
func (c *Cache) MarkDisabled(h uint64) {
	c.mu.Lock()
	if len(c.set) < c.capacity {
		c.set[h] = struct{}{}
	}
	c.mu.Unlock()
	c.recent.Add(h, true)
}

// MarkChecked records a negative result (confirmed usable) in the recency
// cache only; it is never persisted in the disabled set
func (c *Cache) MarkChecked(h uint64) {
	c.recent.Add(h, false)
}

// LoadDisabled bulk-loads confirmed-disabled hashes, typically at startup
// from the authoritative source. Loading stops at capacity; a truncated load
// is logged as a warning
func (c *Cache) LoadDisabled(hashes []uint64) {
	c.mu.Lock()
	loaded := 0
	for _, h := range hashes {
		if len(c.set) >= c.capacity {
			break
		}
		c.set[h] = struct{}{}
		loaded++
	}
	size := len(c.set)
	c.mu.Unlock()

	if loaded < len(hashes) {
		logger.Named("disabled").Warn().
			Int("offered", len(hashes)).
			Int("loaded", loaded).
			Int("capacity", c.capacity).
			Msg("disabled set truncated at capacity")
	} else {
		logger.Named("disabled").Debug().
			Int("loaded", loaded).
			Int("size", size).
			Msg("disabled set loaded")
	}
}

// Len reports the current size of the disabled set
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.set)
}
