package cache

import (
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	value    interface{}
	storedAt time.Time
}

// Memory is a bounded, TTL-based memoization cache for recalculation
// results. It is a single-process structure: in a multi-instance deployment
// each instance holds an independent cache, which is acceptable because
// entries are pure derived data recomputable on miss.
//
// Eviction removes the single oldest entry by insertion time when the cache
// grows over capacity, keeping the rest of the cache warm.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]memoryEntry

	// now is injectable so tests can control expiry.
	now func() time.Time
}

// NewMemory constructs a cache with the given TTL and entry capacity.
func NewMemory(ttl time.Duration, capacity int) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (c *Memory) WithClock(now func() time.Time) *Memory {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Key builds the canonical (student, subject, term) cache key.
func Key(studentID, subjectID, termID string) string {
	return fmt.Sprintf("%s:%s:%s", studentID, subjectID, termID)
}

// Get returns the live value for key, evicting and reporting a miss when the
// entry has outlived the TTL.
func (c *Memory) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores the value, evicting the oldest entry when over capacity.
func (c *Memory) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[key] = memoryEntry{value: value, storedAt: c.now()}
}

// GetOrSet returns the cached value when live, otherwise invokes factory,
// stores its result and returns it. Factory errors are not cached.
func (c *Memory) GetOrSet(key string, factory func() (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := factory()
	if err != nil {
		return nil, err
	}
	c.Set(key, value)
	return value, nil
}

// Invalidate drops the entry for key if present.
func (c *Memory) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the current number of entries.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Memory) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
