package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/appforge/gitsync/common/logger"
)

// Cache is an in-process TTL cache used for short-lived lookups such as
// remote-visibility probe results and resolved author profiles.
type Cache struct {
	store *gocache.Cache
	log   *logger.Logger
}

// New creates a cache with the given default TTL
func New(defaultTTL time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		store: gocache.New(defaultTTL, 2*defaultTTL),
		log:   log,
	}
}

// Get retrieves a value from cache
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set stores a value with the default TTL
func (c *Cache) Set(key string, value interface{}) {
	c.store.SetDefault(key, value)
}

// SetWithTTL stores a value with an explicit TTL
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Delete removes a key
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Flush clears the cache
func (c *Cache) Flush() {
	c.store.Flush()
}
