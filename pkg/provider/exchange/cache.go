package exchange

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/amirasaad/fxdate/pkg/exchange/core"
)

// CacheOptions bounds a MemoryCache. Zero values mean no limit: entries live
// for the whole session and the cache grows without eviction.
type CacheOptions struct {
	TTL        time.Duration
	MaxEntries int
}

// MemoryCache provides an in-memory cache for rate tables
type MemoryCache struct {
	mu    sync.Mutex
	store map[string]*list.Element
	order *list.List // oldest insertion at the front
	opts  CacheOptions
	now   func() time.Time
}

type rateCacheEntry struct {
	key       string
	value     *core.RateTable
	expiresAt time.Time
}

// NewCache creates a new cache with the given policy
func NewCache(opts CacheOptions) *MemoryCache {
	return &MemoryCache{
		store: make(map[string]*list.Element),
		order: list.New(),
		opts:  opts,
		now:   time.Now,
	}
}

// Get gets a table from the cache
func (c *MemoryCache) Get(_ context.Context, key core.CacheKey) (*core.RateTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, exists := c.store[key.String()]
	if !exists {
		return nil, nil
	}

	entry := el.Value.(*rateCacheEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		// Entry has expired
		c.remove(el)
		return nil, nil
	}

	return entry.value, nil
}

// Put stores a table in the cache
func (c *MemoryCache) Put(_ context.Context, key core.CacheKey, table *core.RateTable) error {
	if table == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.String()
	if el, exists := c.store[k]; exists {
		c.remove(el)
	}

	entry := &rateCacheEntry{key: k, value: table}
	if c.opts.TTL > 0 {
		entry.expiresAt = c.now().Add(c.opts.TTL)
	}
	c.store[k] = c.order.PushBack(entry)

	for c.opts.MaxEntries > 0 && c.order.Len() > c.opts.MaxEntries {
		c.remove(c.order.Front())
	}

	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries from the cache
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*list.Element)
	c.order.Init()
}

func (c *MemoryCache) remove(el *list.Element) {
	entry := el.Value.(*rateCacheEntry)
	delete(c.store, entry.key)
	c.order.Remove(el)
}

var _ Cache = (*MemoryCache)(nil)
