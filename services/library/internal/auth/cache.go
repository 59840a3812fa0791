package auth

import (
	"sync"
	"time"
)

const (
	// DefaultCacheTTL bounds how long a verified token is trusted without
	// re-asking the Auth Service.
	DefaultCacheTTL = 60 * time.Second

	// defaultMaxEntries triggers opportunistic eviction of expired entries
	// once the cache grows past it.
	defaultMaxEntries = 2000
)

// TokenCache stores verification results keyed by raw token. Injectable so a
// multi-instance deployment can swap in a shared cache.
type TokenCache interface {
	Get(token string) (TokenUser, bool)
	Set(token string, user TokenUser)
	EvictExpired()
}

type cacheEntry struct {
	user      TokenUser
	expiresAt time.Time
}

// MemoryTokenCache is a process-wide, lock-protected TTL map. Entries are
// not actively reaped; they expire on read or get swept when the map
// overflows maxEntries.
type MemoryTokenCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryTokenCache creates a token cache with the given TTL. A zero ttl
// falls back to DefaultCacheTTL.
func NewMemoryTokenCache(ttl time.Duration) *MemoryTokenCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryTokenCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
}

// Get returns the cached verification result while it is still fresh.
func (c *MemoryTokenCache) Get(token string) (TokenUser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return TokenUser{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, token)
		return TokenUser{}, false
	}
	return entry.user, true
}

// Set stores a verification result, sweeping expired entries first when the
// cache has overflowed.
func (c *MemoryTokenCache) Set(token string, user TokenUser) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictExpiredLocked()
	}
	c.entries[token] = cacheEntry{user: user, expiresAt: c.now().Add(c.ttl)}
}

// EvictExpired drops every expired entry.
func (c *MemoryTokenCache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
}

func (c *MemoryTokenCache) evictExpiredLocked() {
	now := c.now()
	for token, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, token)
		}
	}
}
