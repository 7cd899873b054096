// Package cache persists the destination-key to fingerprint mapping of the
// last successful sync. The cache is advisory: it is eventually consistent
// with the remote store and never authoritative.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/goccy/go-json"
)

// Cache is a durable key -> fingerprint mapping. All methods are safe for
// concurrent use; Persist is serialized so there is never more than one
// writer to the backing file.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// Load reads the cache file at path. A missing or unreadable file yields an
// empty cache; a sync run must never fail because its cache is gone.
func Load(path string) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cache unreadable, starting empty", "path", path, "error", err)
		}
		return c
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		slog.Warn("cache corrupt, starting empty", "path", path, "error", err)
		c.entries = make(map[string]string)
	}
	return c
}

// Get returns the cached fingerprint for key.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fingerprint, ok := c.entries[key]
	return fingerprint, ok
}

// Put upserts the fingerprint for key.
func (c *Cache) Put(key, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = fingerprint
}

// Remove drops key from the cache. Removing an absent key is a no-op.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Persist serializes the full mapping to the backing file, overwriting
// prior contents.
func (c *Cache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write cache %s: %w", c.path, err)
	}
	return nil
}
