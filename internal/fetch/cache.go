package fetch

import (
	"sync"
	"time"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// Cache is a bounded-TTL document cache keyed by (source, query). It exists
// to absorb repeated requests for the same race within a short window; one
// mutex guards it and entries expire on read.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	doc     *model.SourceDocument
	expires time.Time
}

// NewCache creates a cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached document for a source and query, or nil. Expired
// entries are deleted on the way out.
func (c *Cache) Get(sourceID string, q model.RaceQuery) *model.SourceDocument {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sourceID + "|" + q.Key()
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil
	}
	return entry.doc
}

// Set stores a document under the source and query key.
func (c *Cache) Set(sourceID string, q model.RaceQuery, doc *model.SourceDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sourceID+"|"+q.Key()] = cacheEntry{
		doc:     doc,
		expires: time.Now().Add(c.ttl),
	}
}

// Len reports the live entry count, sweeping expired entries first.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
	return len(c.entries)
}
