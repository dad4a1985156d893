// Package querycache is a client-side read model of server resources keyed
// by resource path, with prefix invalidation and optimistic updates.
package querycache

import (
	"container/list"
	"strings"
	"sync"
)

const DefaultCapacity = 512

// Cache is a thread-safe LRU keyed by resource path
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	seq      uint64 // stamped on every write
	mu       sync.Mutex
}

type entry struct {
	key   string
	value interface{}
	seq   uint64
}

// New creates a cache holding at most capacity entries
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached value for key and marks it recently used
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

// Set stores value under key, evicting the least recently used entry if full
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// Invalidate drops a single key
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// InvalidatePrefix drops every key starting with prefix, e.g. "tasks/t1/"
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru = list.New()
}

// Optimistic applies a speculative value for key and runs commit.
//
// On success the settle func commit returns is applied to the value
// cached at that moment, so mutations that overlapped this one are kept.
// If the key was dropped meanwhile nothing is stored and nil is returned.
//
// On failure the prior snapshot is restored, or the key removed when it was
// absent. If another write landed while commit was in flight the snapshot
// is stale, so the key is dropped instead and the next read refetches.
func (c *Cache) Optimistic(key string, apply func(current interface{}) interface{}, commit func() (settle func(current interface{}) interface{}, err error)) (interface{}, error) {
	c.mu.Lock()
	snapshot, existed := c.getLocked(key)
	c.setLocked(key, apply(snapshot))
	speculative := c.seq
	c.mu.Unlock()

	settle, err := commit()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.seqLocked(key) == speculative && existed {
			c.setLocked(key, snapshot)
		} else {
			c.removeLocked(key)
		}
		return nil, err
	}

	current, ok := c.getLocked(key)
	if !ok {
		return nil, nil
	}
	confirmed := settle(current)
	c.setLocked(key, confirmed)
	return confirmed, nil
}

func (c *Cache) seqLocked(key string) uint64 {
	if elem, exists := c.entries[key]; exists {
		return elem.Value.(*entry).seq
	}
	return 0
}

func (c *Cache) getLocked(key string) (interface{}, bool) {
	if elem, exists := c.entries[key]; exists {
		c.lru.MoveToFront(elem)
		return elem.Value.(*entry).value, true
	}
	return nil, false
}

func (c *Cache) setLocked(key string, value interface{}) {
	c.seq++
	if elem, exists := c.entries[key]; exists {
		c.lru.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.value, e.seq = value, c.seq
		return
	}

	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}

	c.entries[key] = c.lru.PushFront(&entry{key: key, value: value, seq: c.seq})
}

func (c *Cache) removeLocked(key string) {
	if elem, exists := c.entries[key]; exists {
		c.lru.Remove(elem)
		delete(c.entries, key)
	}
}
