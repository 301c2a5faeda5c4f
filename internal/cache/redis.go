package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is not present in the cache
var ErrCacheMiss = errors.New("cache miss")

// Cache is a thin JSON cache over Redis
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache creates a new cache from a Redis URL. Returns nil if the URL
// is empty so callers can run without a cache.
func NewCache(redisURL, password string, db int) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	opts.DB = db

	return &Cache{
		client: redis.NewClient(opts),
		ctx:    context.Background(),
	}, nil
}

// Get unmarshals the cached value for key into dest
func (c *Cache) Get(key string, dest interface{}) error {
	data, err := c.client.Get(c.ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set stores value under key with a TTL
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// Delete removes a key
func (c *Cache) Delete(key string) error {
	return c.client.Del(c.ctx, key).Err()
}

// Close closes the underlying Redis client
func (c *Cache) Close() error {
	return c.client.Close()
}
