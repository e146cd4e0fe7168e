package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// cacheEntry is one cached translation with its last-used timestamp.
type cacheEntry struct {
	Value    string    `json:"v"`
	LastUsed time.Time `json:"t"`
}

// Cache is a per-target-language translation result cache persisted as
// JSON under the user cache directory. Identical source texts repeat
// constantly in game metadata exports, so the cache cuts most engine
// calls on re-runs.
//
// The cache is best-effort: load and save failures never fail a job.
type Cache struct {
	path string

	mu     sync.Mutex
	data   map[string]map[string]cacheEntry // target lang -> normalized text -> entry
	hits   int
	misses int
}

// OpenCache loads the cache file for the given tool name, creating the
// cache directory if needed. A missing or unreadable file yields an empty
// cache, not an error.
func OpenCache(tool string) *Cache {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	cacheDir := filepath.Join(dir, tool)
	_ = os.MkdirAll(cacheDir, 0755)

	c := &Cache{
		path: filepath.Join(cacheDir, "cache.json"),
		data: make(map[string]map[string]cacheEntry),
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}
	var data map[string]map[string]cacheEntry
	if err := json.Unmarshal(raw, &data); err != nil {
		return c
	}
	if data != nil {
		c.data = data
	}
	return c
}

// normalize builds the cache key for a source text.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Get looks up a cached translation.
func (c *Cache) Get(lang, text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[lang][normalize(text)]
	if !ok {
		c.misses++
		return "", false
	}
	entry.LastUsed = time.Now()
	c.data[lang][normalize(text)] = entry
	c.hits++
	return entry.Value, true
}

// Put stores a translation result.
func (c *Cache) Put(lang, text, translated string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data[lang] == nil {
		c.data[lang] = make(map[string]cacheEntry)
	}
	c.data[lang][normalize(text)] = cacheEntry{Value: translated, LastUsed: time.Now()}
}

// Stats returns hit and miss counters for the job summary.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Save persists the cache to disk.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", c.path, err)
	}
	return nil
}
