package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/acquire/models"
)

// Entry holds a cached acquisition result with its freshness metadata.
// Entries are read-only after insertion; Set replaces them atomically by key.
type Entry struct {
	Result *models.AcquireResult

	// StoredAt is the insertion timestamp. Eviction order is driven by it,
	// not by access recency.
	StoredAt time.Time

	// TTL overrides the cache default when positive (derived from the
	// origin's Cache-Control max-age).
	TTL time.Duration

	// Validator tokens for conditional revalidation of stale entries.
	ETag         string
	LastModified string
}

// Cache is a capacity-bounded, time-bounded in-memory cache of acquisition
// results. It is safe for concurrent use. Expiry is evaluated lazily at read
// time; expired entries are deleted on read, never swept proactively.
type Cache struct {
	mu         sync.Mutex
	store      map[string]*Entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache with the given capacity and default time-to-live.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Key generates a deterministic cache key from the request fingerprint:
// target URL, custom script, and wait selector.
func Key(url, script, waitSelector string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(script))
	h.Write([]byte("|"))
	h.Write([]byte(waitSelector))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a fresh entry. A missing or expired key returns (nil, false);
// expired entries are deleted on the spot.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return nil, false
	}
	if c.expired(e, time.Now()) {
		delete(c.store, key)
		return nil, false
	}
	return e, true
}

// GetStale retrieves an entry ignoring expiry. Used to attach validator
// tokens (ETag, Last-Modified) to a conditional revalidation request.
func (c *Cache) GetStale(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store[key]
	return e, ok
}

// Set stores an entry, stamping its insertion time. At capacity the oldest
// 10% of entries by insertion timestamp (minimum 1) are evicted first.
func (c *Cache) Set(key string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictOldest()
	}

	e.StoredAt = time.Now()
	c.store[key] = e
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*Entry)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// expired reports whether the entry's effective TTL has elapsed at now.
// A zero TTL means the entry is never fresh.
func (c *Cache) expired(e *Entry, now time.Time) bool {
	ttl := c.ttl
	if e.TTL > 0 {
		ttl = e.TTL
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(e.StoredAt) > ttl
}

// evictOldest removes max(1, capacity/10) entries, oldest insertion first.
// Caller must hold c.mu.
func (c *Cache) evictOldest() {
	n := c.maxEntries / 10
	if n < 1 {
		n = 1
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	entries := make([]aged, 0, len(c.store))
	for k, e := range c.store {
		entries = append(entries, aged{key: k, storedAt: e.StoredAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].storedAt.Before(entries[j].storedAt)
	})

	if n > len(entries) {
		n = len(entries)
	}
	for _, e := range entries[:n] {
		delete(c.store, e.key)
	}
}

// ParseMaxAge extracts the max-age directive from a Cache-Control header
// value as a duration. Returns 0 when absent or malformed.
func ParseMaxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		value, found := strings.CutPrefix(directive, "max-age=")
		if !found {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
