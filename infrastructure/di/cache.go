package di

import (
	"context"
	"time"

	"github.com/Yiling-J/theine-go"
)

// TheineCache adapts a theine cache to ports.Cache
type TheineCache struct {
	client *theine.Cache[string, interface{}]
}

// NewTheineCache creates a bounded cache holding up to maxEntries values
func NewTheineCache(maxEntries int64) (*TheineCache, error) {
	client, err := theine.NewBuilder[string, interface{}](maxEntries).Build()
	if err != nil {
		return nil, err
	}
	return &TheineCache{client: client}, nil
}

// Get retrieves a value from cache
func (c *TheineCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.client.Get(key)
}

// Set stores a value in cache. A zero ttl keeps the entry until it is evicted.
func (c *TheineCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		c.client.Set(key, value, 1)
		return nil
	}
	c.client.SetWithTTL(key, value, 1, ttl)
	return nil
}

// Delete removes a value from cache
func (c *TheineCache) Delete(ctx context.Context, key string) error {
	c.client.Delete(key)
	return nil
}

// Close stops the cache maintenance goroutines
func (c *TheineCache) Close() {
	c.client.Close()
}
