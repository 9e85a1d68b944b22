package memory

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Collection is a generic, thread-safe, in-memory document collection that
// keeps insertion order for deterministic listing.
type Collection[T any] struct {
	mu      sync.RWMutex
	items   map[string]T
	order   []string
	prefix  string
	counter atomic.Uint64
}

// NewCollection creates a Collection whose generated ids use prefix
// (e.g. "cap", "ord").
func NewCollection[T any](prefix string) *Collection[T] {
	return &Collection[T]{
		items:  make(map[string]T),
		order:  make([]string, 0),
		prefix: prefix,
	}
}

// NextID generates an id of the form "{prefix}_{counter}", e.g. "cap_0001".
func (c *Collection[T]) NextID() string {
	n := c.counter.Add(1)
	return fmt.Sprintf("%s_%04d", c.prefix, n)
}

// Insert stores a new document. It fails when the id is already present.
func (c *Collection[T]) Insert(id string, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[id]; exists {
		return false
	}
	c.items[id] = item
	c.order = append(c.order, id)
	return true
}

// Set stores a document, keeping its position when the id already exists.
func (c *Collection[T]) Set(id string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[id]; !exists {
		c.order = append(c.order, id)
	}
	c.items[id] = item
}

// Get retrieves a document by id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// Update applies fn to the stored document under the write lock. It reports
// false when the id is unknown; fn's error aborts the write.
func (c *Collection[T]) Update(id string, fn func(*T) error) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		var zero T
		return zero, false, nil
	}
	if err := fn(&item); err != nil {
		return item, true, err
	}
	c.items[id] = item
	return item, true, nil
}

// Delete removes a document. Returns true if it existed.
func (c *Collection[T]) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[id]; !exists {
		return false
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all documents in insertion order.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Latest returns up to limit documents, most recently inserted first.
// limit <= 0 returns everything.
func (c *Collection[T]) Latest(limit int) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 || limit > len(c.order) {
		limit = len(c.order)
	}
	out := make([]T, 0, limit)
	for i := len(c.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.items[c.order[i]])
	}
	return out
}

// Count returns the number of documents.
func (c *Collection[T]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset clears all documents and the id counter.
func (c *Collection[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T)
	c.order = make([]string, 0)
	c.counter.Store(0)
}

// Snapshot returns all documents keyed by id.
func (c *Collection[T]) Snapshot() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]T, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// LoadSnapshot replaces all documents. Ids are sorted to keep a
// deterministic order, and the counter is advanced past the loaded count so
// generated ids do not collide.
func (c *Collection[T]) LoadSnapshot(snapshot map[string]T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T, len(snapshot))
	c.order = make([]string, 0, len(snapshot))
	for k, v := range snapshot {
		c.items[k] = v
		c.order = append(c.order, k)
	}
	sort.Strings(c.order)
	c.counter.Store(uint64(len(snapshot)))
}
