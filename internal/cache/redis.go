package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Baaaki/car-rental/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	popularPrefix   = "cars:popular"
	popularGenKey   = popularPrefix + ":gen"
	popularEntryFmt = popularPrefix + ":%d:%d"
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisPopularCache stores one JSON entry per generation and limit, each with
// its own TTL. Invalidate bumps the generation counter; entries of older
// generations are unreachable and expire on their own.
type RedisPopularCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPopularCache(client *redis.Client, ttl time.Duration) *RedisPopularCache {
	return &RedisPopularCache{client: client, ttl: ttl}
}

func entryKey(gen int64, limit int) string {
	return fmt.Sprintf(popularEntryFmt, gen, limit)
}

func (c *RedisPopularCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, popularGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisPopularCache) Get(ctx context.Context, limit int) ([]models.PopularCar, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	data, err := c.client.Get(ctx, entryKey(gen, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, err
	}

	var cars []models.PopularCar
	if err := json.Unmarshal(data, &cars); err != nil {
		return nil, gen, false, err
	}
	return cars, gen, true, nil
}

func (c *RedisPopularCache) Set(ctx context.Context, gen int64, limit int, cars []models.PopularCar) error {
	data, err := json.Marshal(cars)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(gen, limit), data, c.ttl).Err()
}

func (c *RedisPopularCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, popularGenKey).Err()
}
