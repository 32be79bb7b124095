// Package cache is the Redis/Valkey read cache for users and rating averages.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"imagine/internal/config"
	"imagine/internal/domain/photo"
)

// ErrCacheDisabled is returned by NewRedisClient when CACHE_ENABLED is off
var ErrCacheDisabled = errors.New("cache is disabled")

const (
	userPrefix    = "user:"
	averagePrefix = "rating_avg:"

	versionSuffix = ":version"

	fallbackUserTTL = 5 * time.Minute
	connectTimeout  = 5 * time.Second

	// versionTTL outlives any read that could still be holding a version
	versionTTL = 24 * time.Hour
)

// fillScript stores ARGV[2] under KEYS[1] only while KEYS[2] still holds the
// version the reader saw (ARGV[1]; a missing key is version 0). ARGV[3] is
// the TTL in milliseconds, 0 for none.
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// evictScript bumps the version under KEYS[2] and drops KEYS[1]
var evictScript = redis.NewScript(`
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
redis.call('DEL', KEYS[1])
return 1
`)

// RedisClient speaks to Redis or Valkey
type RedisClient struct {
	rdb        *redis.Client
	userTTL    time.Duration
	averageTTL time.Duration
}

var (
	_ photo.UserCache   = (*RedisClient)(nil)
	_ photo.RatingCache = (*RedisClient)(nil)
)

// NewRedisClient connects and pings. A disabled cache yields ErrCacheDisabled.
func NewRedisClient(cfg config.CacheConfig) (*RedisClient, error) {
	if !cfg.Enabled {
		return nil, ErrCacheDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.Database,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("cache unreachable at %s: %w", cfg.Address, err), rdb.Close())
	}

	c := &RedisClient{rdb: rdb, userTTL: cfg.UserTTL, averageTTL: cfg.DefaultTTL}
	if c.userTTL <= 0 {
		c.userTTL = fallbackUserTTL
	}
	return c, nil
}

func userKey(id uuid.UUID) string   { return userPrefix + id.String() }
func averageKey(photoID int) string { return averagePrefix + strconv.Itoa(photoID) }

// read fetches key, mapping a missing key to photo.ErrCacheMiss
func (c *RedisClient) read(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%w: %s", photo.ErrCacheMiss, key)
	case err != nil:
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return raw, nil
}

// version reads the version of key; a key never evicted is version 0
func (c *RedisClient) version(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Get(ctx, key+versionSuffix).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("cache version %s: %w", key, err)
	}
	return v, nil
}

// fill stores val under key unless key was evicted after version was read
func (c *RedisClient) fill(ctx context.Context, key string, val any, version int64, ttl time.Duration) error {
	keys := []string{key, key + versionSuffix}
	err := fillScript.Run(ctx, c.rdb, keys, strconv.FormatInt(version, 10), val, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("cache fill %s: %w", key, err)
	}
	return nil
}

func (c *RedisClient) evict(ctx context.Context, key string) error {
	keys := []string{key, key + versionSuffix}
	if err := evictScript.Run(ctx, c.rdb, keys, versionTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cache evict %s: %w", key, err)
	}
	return nil
}

// GetUser returns the cached user or photo.ErrCacheMiss
func (c *RedisClient) GetUser(ctx context.Context, id uuid.UUID) (*photo.User, error) {
	raw, err := c.read(ctx, userKey(id))
	if err != nil {
		return nil, err
	}
	var u photo.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode cached user %s: %w", id, err)
	}
	return &u, nil
}

func (c *RedisClient) UserVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	return c.version(ctx, userKey(id))
}

// FillUser stores u for the user TTL unless it was evicted since version
func (c *RedisClient) FillUser(ctx context.Context, u *photo.User, version int64) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	return c.fill(ctx, userKey(u.ID), raw, version, c.userTTL)
}

// EvictUser drops a user after a role or ban change
func (c *RedisClient) EvictUser(ctx context.Context, id uuid.UUID) error {
	return c.evict(ctx, userKey(id))
}

// GetAverage returns the cached average or photo.ErrCacheMiss
func (c *RedisClient) GetAverage(ctx context.Context, photoID int) (float64, error) {
	raw, err := c.read(ctx, averageKey(photoID))
	if err != nil {
		return 0, err
	}
	avg, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("decode cached average for photo %d: %w", photoID, err)
	}
	return avg, nil
}

func (c *RedisClient) AverageVersion(ctx context.Context, photoID int) (int64, error) {
	return c.version(ctx, averageKey(photoID))
}

// FillAverage stores an average as a plain float so it stays readable from
// redis-cli
func (c *RedisClient) FillAverage(ctx context.Context, photoID int, avg float64, version int64) error {
	val := strconv.FormatFloat(avg, 'f', -1, 64)
	return c.fill(ctx, averageKey(photoID), val, version, c.averageTTL)
}

// InvalidateAverage drops an average after its ratings changed
func (c *RedisClient) InvalidateAverage(ctx context.Context, photoID int) error {
	return c.evict(ctx, averageKey(photoID))
}

// Health pings the server
func (c *RedisClient) Health(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// FlushCache empties the selected database. Tests only.
func (c *RedisClient) FlushCache(ctx context.Context) error {
	return c.rdb.FlushDB(ctx).Err()
}
