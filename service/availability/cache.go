package availability

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds projections until the next Recompute of the same book.
type Cache interface {
	Get(ctx context.Context, bookID string) (Availability, bool, error)
	Set(ctx context.Context, a Availability) error
	Delete(ctx context.Context, bookID string) error
}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) Cache {
	return &redisCache{rdb: rdb, ttl: ttl}
}

func cacheKey(bookID string) string { return "availability:" + bookID }

func (c *redisCache) Get(ctx context.Context, bookID string) (Availability, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(bookID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Availability{}, false, nil
	}
	if err != nil {
		return Availability{}, false, err
	}
	var a Availability
	if err := json.Unmarshal(raw, &a); err != nil {
		return Availability{}, false, err
	}
	return a, true, nil
}

func (c *redisCache) Set(ctx context.Context, a Availability) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(a.BookID), raw, c.ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, bookID string) error {
	return c.rdb.Del(ctx, cacheKey(bookID)).Err()
}

type entry struct {
	a   Availability
	exp time.Time
}

type localCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

func NewLocalCache(ttl time.Duration) Cache {
	return &localCache{ttl: ttl, m: make(map[string]entry)}
}

func (c *localCache) Get(_ context.Context, bookID string) (Availability, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[bookID]
	if !ok || (c.ttl > 0 && time.Now().After(e.exp)) {
		return Availability{}, false, nil
	}
	return e.a, true, nil
}

func (c *localCache) Set(_ context.Context, a Availability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[a.BookID] = entry{a: a, exp: time.Now().Add(c.ttl)}
	return nil
}

func (c *localCache) Delete(_ context.Context, bookID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, bookID)
	return nil
}
