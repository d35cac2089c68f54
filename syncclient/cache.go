package syncclient

import (
	"sync"

	"creditflow/application"
	"creditflow/status"
)

type entry struct {
	record application.StatusRecord
	// moving marks an optimistic write in flight; reconciliation skips the
	// record until the write settles so the server cannot race it backwards.
	moving bool
	target status.Status
}

// Cache is the client-side copy of the board, keyed by application id.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Get returns the cached record and whether it exists.
func (c *Cache) Get(id string) (application.StatusRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return application.StatusRecord{}, false
	}
	return e.record, true
}

// Records returns a snapshot of every cached record.
func (c *Cache) Records() []application.StatusRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]application.StatusRecord, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.record)
	}
	return out
}

// IDs returns the cached ids.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

// Put replaces the cached record, clearing any in-flight mark.
func (c *Cache) Put(rec application.StatusRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rec.ID] = &entry{record: rec}
}

// Remove drops a record from the cache.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// beginMove marks the record as moving and applies the optimistic status.
// It returns the pre-move record for rollback, and false when the record is
// unknown or already has a move in flight.
func (c *Cache) beginMove(id string, target status.Status) (application.StatusRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || e.moving {
		return application.StatusRecord{}, false
	}
	before := e.record
	e.moving = true
	e.target = target
	e.record.Status = target
	e.record.AdvisorStatus = target
	e.record.GlobalStatus = target
	return before, true
}

// settleMove replaces the entry with the server's record after a successful
// write.
func (c *Cache) settleMove(rec application.StatusRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rec.ID] = &entry{record: rec}
}

// rollbackMove restores the pre-move record after a failed write.
func (c *Cache) rollbackMove(before application.StatusRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[before.ID] = &entry{record: before}
}

// isMoving reports whether an optimistic write is in flight for id.
func (c *Cache) isMoving(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return ok && e.moving
}
