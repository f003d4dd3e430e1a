package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory Cache adapter for tests and loopback runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// now is swappable so tests can drive TTL expiry.
	now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) live(entry memoryEntry) bool {
	return entry.expiresAt.IsZero() || entry.expiresAt.After(c.now())
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || !c.live(entry) {
		delete(c.entries, key)
		return "", ErrMiss
	}
	return entry.value, nil
}

func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = c.entry(value, ttl)
	return nil
}

func (c *MemoryCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok && c.live(entry) {
		return false, nil
	}
	c.entries[key] = c.entry(value, ttl)
	return true, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) entry(value string, ttl time.Duration) memoryEntry {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	return entry
}
