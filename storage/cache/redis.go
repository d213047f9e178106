// Package cache keeps short-lived copies of read-mostly data in Redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

const catalogKey = "academia:catalog"

type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ course.Cache = (*CatalogCache)(nil)

// NewClient connects to the Redis server at addr.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.Unavailable(err, "pinging redis")
	}
	return client, nil
}

func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

func (c *CatalogCache) GetCatalog(ctx context.Context) ([]course.Course, bool, error) {
	val, err := c.client.Get(ctx, catalogKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "getting catalog")
	}

	var courses []course.Course
	if err = json.Unmarshal([]byte(val), &courses); err != nil {
		return nil, false, errors.Wrap(err, "decoding catalog")
	}
	return courses, true, nil
}

func (c *CatalogCache) SetCatalog(ctx context.Context, courses []course.Course) error {
	payload, err := json.Marshal(courses)
	if err != nil {
		return errors.Wrap(err, "encoding catalog")
	}
	return errors.Wrap(c.client.Set(ctx, catalogKey, string(payload), c.ttl).Err(), "setting catalog")
}

func (c *CatalogCache) InvalidateCatalog(ctx context.Context) error {
	return errors.Wrap(c.client.Del(ctx, catalogKey).Err(), "deleting catalog")
}
