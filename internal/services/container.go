// Package services wires repositories, platform clients and domain services
// into one graph.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"imagine/internal/config"
	"imagine/internal/domain/photo"
	"imagine/internal/observability"
	"imagine/internal/platform/cache"
	"imagine/internal/platform/database"
	"imagine/internal/platform/storage"
	"imagine/internal/services/implementations"
)

// HealthCheck probes one backing dependency
type HealthCheck func(ctx context.Context) error

// Container owns the service graph and the connections underneath it
type Container struct {
	config *config.Config
	db     *sql.DB
	logger *observability.Logger

	objects *storage.MinIOClient
	redis   *cache.RedisClient
	cache   *implementations.CacheService

	photos   photo.PhotoService
	tags     photo.TagService
	ratings  photo.RatingService
	search   photo.SearchService
	comments photo.CommentService
	users    photo.UserService
}

// NewContainer builds every service. objects and redis may be nil: without
// redis the cache is bypassed, without objects uploads fail.
func NewContainer(
	cfg *config.Config,
	db *sql.DB,
	objects *storage.MinIOClient,
	redis *cache.RedisClient,
	logger *observability.Logger,
) (*Container, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	metrics, err := observability.NewDomainMetrics(observability.GetDomainMeter())
	if err != nil {
		return nil, fmt.Errorf("domain metrics: %w", err)
	}

	c := &Container{
		config:  cfg,
		db:      db,
		logger:  logger,
		objects: objects,
		redis:   redis,
		cache:   implementations.NewCacheService(redis),
	}

	photoRepo := database.NewPhotoRepository(db)
	tagRepo := database.NewTagRepository(db)
	limits := cfg.Photos

	processor := storage.NewImageProcessor(limits.MaxTransformSide, 0)
	uploads := storage.NewUploadPolicy(cfg.Storage.MaxUploadSize, cfg.Storage.AllowedTypes, processor)

	c.tags = implementations.NewTagService(tagRepo, metrics, logger)
	c.ratings = implementations.NewRatingService(database.NewRatingRepository(db), c.cache, metrics, logger)
	c.search = implementations.NewSearchService(database.NewSearchRepository(db), tagRepo, metrics, logger, limits.MaxPageSize)
	c.comments = implementations.NewCommentService(database.NewCommentRepository(db), logger)
	c.users = implementations.NewUserService(database.NewUserRepository(db), photoRepo, c.cache, metrics, logger)

	deps := implementations.PhotoServiceDeps{
		PhotoRepo:        photoRepo,
		TagRepo:          tagRepo,
		Tags:             c.tags,
		Ratings:          c.ratings,
		Transformer:      processor,
		Uploads:          uploads,
		Logger:           logger,
		MaxTransformSide: limits.MaxTransformSide,
		MaxPageSize:      limits.MaxPageSize,
	}
	// A nil *MinIOClient must not become a non-nil ImageHost
	if objects != nil {
		deps.Host = objects
	}
	c.photos = implementations.NewPhotoService(deps)

	logger.Info(context.Background()).
		Bool("cache_enabled", c.cache.Enabled()).
		Bool("storage_configured", objects != nil).
		Msg("Services ready")
	return c, nil
}

func (c *Container) Config() *config.Config                     { return c.config }
func (c *Container) DB() *sql.DB                                { return c.db }
func (c *Container) Logger() *observability.Logger              { return c.logger }
func (c *Container) CacheService() *implementations.CacheService { return c.cache }
func (c *Container) PhotoService() photo.PhotoService           { return c.photos }
func (c *Container) TagService() photo.TagService               { return c.tags }
func (c *Container) RatingService() photo.RatingService         { return c.ratings }
func (c *Container) SearchService() photo.SearchService         { return c.search }
func (c *Container) CommentService() photo.CommentService       { return c.comments }
func (c *Container) UserService() photo.UserService             { return c.users }

// HealthChecks returns one readiness probe per configured backend
func (c *Container) HealthChecks() map[string]HealthCheck {
	checks := map[string]HealthCheck{}
	if c.db != nil {
		checks["database"] = c.db.PingContext
	}
	if c.objects != nil {
		checks["storage"] = c.objects.Health
	}
	if c.cache.Enabled() {
		checks["cache"] = c.cache.Health
	}
	return checks
}

// Close releases the cache and database connections
func (c *Container) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
