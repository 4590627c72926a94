package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"user-service/internal/entity"
)

// Cache keeps single users in redis for GET /users/:id. A nil *Cache does
// nothing. Redis failures are logged and treated as misses.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func (c *Cache) Get(ctx context.Context, id int64) (*entity.User, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn().Err(err).Msgf("Error reading user %d from cache", id)
		}
		return nil, false
	}

	var user entity.User
	if err := json.Unmarshal(val, &user); err != nil {
		logger.Warn().Err(err).Msgf("Discarding malformed cache entry for user %d", id)
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &user, true
}

func (c *Cache) Set(ctx context.Context, user *entity.User) {
	if c == nil {
		return
	}
	val, err := json.Marshal(user)
	if err != nil {
		logger.Warn().Err(err).Msgf("Error encoding user %d for cache", user.ID)
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(user.ID), val, c.ttl).Err(); err != nil {
		logger.Warn().Err(err).Msgf("Error caching user %d", user.ID)
	}
}

func (c *Cache) Invalidate(ctx context.Context, id int64) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		logger.Warn().Err(err).Msgf("Error invalidating cached user %d", id)
	}
}
