package remote

import (
	"sort"
	"sync"

	"github.com/wippyai/mfe-bridge/contract"
)

// Cache holds resolved namespaces for a session. Entries are never evicted
// individually; Clear drops everything at session end.
type Cache struct {
	entries map[Key]contract.Namespace
	mu      sync.RWMutex
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]contract.Namespace)}
}

// Get returns the cached namespace for k.
func (c *Cache) Get(k Key) (contract.Namespace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns, ok := c.entries[k]
	return ns, ok
}

// Put stores ns unless an entry already exists, and returns the entry that
// is in the cache afterwards.
func (c *Cache) Put(k Key, ns contract.Namespace) contract.Namespace {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[k]; ok {
		return existing
	}
	c.entries[k] = ns
	return ns
}

// Len returns the number of cached namespaces.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys sorted by origin, then module.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Origin != keys[j].Origin {
			return keys[i].Origin < keys[j].Origin
		}
		return keys[i].Module < keys[j].Module
	})
	return keys
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[Key]contract.Namespace)
	c.mu.Unlock()
}
