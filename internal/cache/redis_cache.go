package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"retailpulse/backend/internal/domain"
)

const defaultRedisTTL = time.Hour

// RedisForecastCache shares forecasts between replicas. Every entry expires:
// a zero ttl on Set means the cache's default TTL.
type RedisForecastCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	now        func() time.Time
}

func NewRedisForecastCache(addr string, password string, db int, defaultTTL time.Duration) *RedisForecastCache {
	if defaultTTL <= 0 {
		defaultTTL = defaultRedisTTL
	}
	return &RedisForecastCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *RedisForecastCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisForecastCache) Close() error {
	return c.client.Close()
}

// Get reads key. Entries in an older format are deleted and reported as a
// miss.
func (c *RedisForecastCache) Get(ctx context.Context, key string) (*domain.ForecastResponse, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	resp, err := decodeForecast(raw)
	if errors.Is(err, ErrUnknownFormat) {
		return nil, false, c.client.Del(ctx, key).Err()
	}
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (c *RedisForecastCache) Set(ctx context.Context, key string, value *domain.ForecastResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := encodeForecast(value, c.now())
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.expiry(ttl)).Err()
}

func (c *RedisForecastCache) expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}
