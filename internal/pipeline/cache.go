package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// CacheStore is the durable backing for the conversation cache. Lookup
// returns (nil, nil) on a miss. Implementations live with the persistence
// layer; the pipeline only ever reads and writes whole results.
type CacheStore interface {
	Lookup(ctx context.Context, conversationID, fingerprint string) (*Result, error)
	Store(ctx context.Context, conversationID, fingerprint string, result *Result) error
}

type cacheKey struct {
	conversation string
	fingerprint  string
}

// Cache maps (conversation, fingerprint) to a previously computed result.
// In-memory map first, optional write-through to a CacheStore. The cache is
// advisory: a backing failure costs recomputation, never correctness, so
// store errors are logged and swallowed.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Result
	backing CacheStore
	logger  *slog.Logger
}

// NewCache creates a Cache. backing may be nil for memory-only operation.
func NewCache(backing CacheStore, logger *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[cacheKey]*Result),
		backing: backing,
		logger:  logger.With("system", "cache"),
	}
}

// Lookup returns the cached result for the conversation at the given
// fingerprint. A changed fingerprint never matches an older entry, which is
// what invalidates the cache when a conversation grows.
func (c *Cache) Lookup(ctx context.Context, conversationID, fingerprint string) (*Result, bool) {
	key := cacheKey{conversation: conversationID, fingerprint: fingerprint}

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, true
	}

	if c.backing == nil {
		return nil, false
	}

	stored, err := c.backing.Lookup(ctx, conversationID, fingerprint)
	if err != nil {
		c.logger.Warn("cache backing lookup failed", "conversation_id", conversationID, "error", err)
		return nil, false
	}
	if stored == nil {
		return nil, false
	}

	c.mu.Lock()
	c.entries[key] = stored
	c.mu.Unlock()
	return stored, true
}

// Store records a computed result. Entries are never mutated in place: a new
// fingerprint writes a new entry and supersedes the old one without deleting it.
func (c *Cache) Store(ctx context.Context, conversationID, fingerprint string, result *Result) {
	key := cacheKey{conversation: conversationID, fingerprint: fingerprint}

	c.mu.Lock()
	c.entries[key] = result
	c.mu.Unlock()

	if c.backing == nil {
		return
	}
	if err := c.backing.Store(ctx, conversationID, fingerprint, result); err != nil {
		c.logger.Warn("cache backing store failed", "conversation_id", conversationID, "error", err)
	}
}

// Evict drops the in-memory entry for a conversation fingerprint, forcing
// the next lookup through the backing store. Used by explicit reclassification.
func (c *Cache) Evict(conversationID, fingerprint string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{conversation: conversationID, fingerprint: fingerprint})
	c.mu.Unlock()
}
