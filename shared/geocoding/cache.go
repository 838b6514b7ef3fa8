package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// DefaultCacheTTL is how long a resolved lookup stays cached.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "geocode:"

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("geocoding cache miss")

// Cache stores resolved lookups keyed by operation and input.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisCache is a Cache backed by Redis string keys with a fixed TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}

	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// reverseKey rounds to six decimals, roughly ten centimetres.
func reverseKey(c geo.Coordinates) string {
	return fmt.Sprintf("%sreverse:%.6f:%.6f", cacheKeyPrefix, c.Lat, c.Lng)
}

func searchKey(address string) string {
	return cacheKeyPrefix + "search:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func encodeCoordinates(c geo.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

func decodeCoordinates(raw string) (geo.Coordinates, error) {
	latRaw, lngRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return geo.Coordinates{}, fmt.Errorf("malformed cached coordinates %q", raw)
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return geo.Coordinates{}, err
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return geo.Coordinates{}, err
	}

	c := geo.Coordinates{Lat: lat, Lng: lng}
	return c, c.Validate()
}
