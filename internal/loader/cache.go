package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"infrascan/internal/tree"
)

// DefaultCacheSize bounds the number of merged trees kept in memory.
const DefaultCacheSize = 64

type cacheKey struct {
	digest  string
	profile string
}

// Cache memoizes merged trees by source content and profile. Trees are
// immutable, so a cached tree can be handed to any number of callers.
type Cache struct {
	entries *lru.Cache[cacheKey, *tree.Map]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a cache holding at most size trees.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[cacheKey, *tree.Map](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Load behaves like the package-level Load but returns a cached tree when
// the same text was already merged for profile. A nil cache always parses.
func (c *Cache) Load(text, profile string) *tree.Map {
	if c == nil {
		return Load(text, profile)
	}

	sum := sha256.Sum256([]byte(text))
	key := cacheKey{digest: hex.EncodeToString(sum[:]), profile: profile}
	if m, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return m
	}

	c.misses.Add(1)
	m := Load(text, profile)
	c.entries.Add(key, m)
	return m
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every cached tree.
func (c *Cache) Purge() {
	c.entries.Purge()
}
