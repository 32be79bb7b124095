package implementations

import (
	"context"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
	"imagine/internal/platform/cache"
)

// cacheBackend is what CacheService needs from Redis/Valkey
type cacheBackend interface {
	photo.UserCache
	photo.RatingCache
	Health(ctx context.Context) error
}

// CacheService exposes the optional read cache to the domain services.
// Without a client every read misses and every write is dropped.
type CacheService struct {
	backend cacheBackend
	enabled bool
}

var (
	_ photo.UserCache   = (*CacheService)(nil)
	_ photo.RatingCache = (*CacheService)(nil)
)

// NewCacheService wraps client, which may be nil when caching is off
func NewCacheService(client *cache.RedisClient) *CacheService {
	if client == nil {
		return &CacheService{backend: noCache{}}
	}
	return &CacheService{backend: client, enabled: true}
}

func (c *CacheService) Enabled() bool { return c.enabled }

func (c *CacheService) GetUser(ctx context.Context, id uuid.UUID) (*photo.User, error) {
	return c.backend.GetUser(ctx, id)
}

func (c *CacheService) UserVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	return c.backend.UserVersion(ctx, id)
}

func (c *CacheService) FillUser(ctx context.Context, u *photo.User, version int64) error {
	return c.backend.FillUser(ctx, u, version)
}

func (c *CacheService) EvictUser(ctx context.Context, id uuid.UUID) error {
	return c.backend.EvictUser(ctx, id)
}

func (c *CacheService) GetAverage(ctx context.Context, photoID int) (float64, error) {
	return c.backend.GetAverage(ctx, photoID)
}

func (c *CacheService) AverageVersion(ctx context.Context, photoID int) (int64, error) {
	return c.backend.AverageVersion(ctx, photoID)
}

func (c *CacheService) FillAverage(ctx context.Context, photoID int, avg float64, version int64) error {
	return c.backend.FillAverage(ctx, photoID, avg, version)
}

func (c *CacheService) InvalidateAverage(ctx context.Context, photoID int) error {
	return c.backend.InvalidateAverage(ctx, photoID)
}

// Health pings the backend; a disabled cache is always healthy
func (c *CacheService) Health(ctx context.Context) error {
	return c.backend.Health(ctx)
}

// noCache stands in when CACHE_ENABLED is off
type noCache struct{}

func (noCache) GetUser(context.Context, uuid.UUID) (*photo.User, error)     { return nil, photo.ErrCacheMiss }
func (noCache) UserVersion(context.Context, uuid.UUID) (int64, error)       { return 0, nil }
func (noCache) FillUser(context.Context, *photo.User, int64) error          { return nil }
func (noCache) EvictUser(context.Context, uuid.UUID) error                  { return nil }
func (noCache) GetAverage(context.Context, int) (float64, error)            { return 0, photo.ErrCacheMiss }
func (noCache) AverageVersion(context.Context, int) (int64, error)          { return 0, nil }
func (noCache) FillAverage(context.Context, int, float64, int64) error      { return nil }
func (noCache) InvalidateAverage(context.Context, int) error                { return nil }
func (noCache) Health(context.Context) error                                { return nil }
