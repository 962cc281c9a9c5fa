package authz

import "sync"

// Cache maps user ids to resolved permission sets. Reads take a shared
// lock so concurrent checks never block each other; invalidation removes
// the entry and advances the user's epoch so an in-flight resolution that
// raced the invalidation cannot repopulate stale data.
type Cache struct {
	mu      sync.RWMutex
	gen     uint64
	epochs  map[int64]uint64
	entries map[int64]cacheEntry
}

type cacheEntry struct {
	set   PermissionSet
	gen   uint64
	epoch uint64
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{
		epochs:  make(map[int64]uint64),
		entries: make(map[int64]cacheEntry),
	}
}

// Get returns the cached set for the user if current.
func (c *Cache) Get(userID int64) (PermissionSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	if !ok || e.gen != c.gen || e.epoch != c.epochs[userID] {
		return nil, false
	}
	return e.set, true
}

// Version snapshots the generation and user epoch before a resolution.
func (c *Cache) Version(userID int64) (gen, epoch uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen, c.epochs[userID]
}

// Put stores a resolved set if no invalidation happened since the version
// snapshot. Returns false when the result was discarded as stale.
func (c *Cache) Put(userID int64, set PermissionSet, gen, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || epoch != c.epochs[userID] {
		return false
	}
	c.entries[userID] = cacheEntry{set: set, gen: gen, epoch: epoch}
	return true
}

// Invalidate drops the entries for the given users. Replacement is atomic:
// the entry disappears as a whole and the next read recomputes lazily.
func (c *Cache) Invalidate(userIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.entries, id)
		c.epochs[id]++
	}
}

// InvalidateAll drops every entry, for mutations that change grant
// identity globally (module renames).
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[int64]cacheEntry)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
