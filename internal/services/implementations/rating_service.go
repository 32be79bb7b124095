package implementations

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
)

const ratingCacheName = "rating_avg"

// RatingServiceImpl implements the photo.RatingService interface
type RatingServiceImpl struct {
	ratingRepo photo.RatingRepository
	cache      photo.RatingCache
	metrics    *observability.DomainMetrics
	logger     *observability.Logger
}

// NewRatingService creates a new rating service implementation
func NewRatingService(
	ratingRepo photo.RatingRepository,
	cache photo.RatingCache,
	metrics *observability.DomainMetrics,
	logger *observability.Logger,
) photo.RatingService {
	return &RatingServiceImpl{
		ratingRepo: ratingRepo,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateRating records a user's single rating of a photo
func (s *RatingServiceImpl) CreateRating(ctx context.Context, photoID int, userID uuid.UUID, value int) (*photo.Rating, error) {
	if err := photo.ValidateRatingValue(value); err != nil {
		s.metrics.RatingRejected(ctx, photo.Kind(err))
		return nil, err
	}

	rating, err := s.ratingRepo.Create(ctx, photoID, userID, value)
	if err != nil {
		s.metrics.RatingRejected(ctx, photo.Kind(err))
		return nil, err
	}

	s.metrics.RatingCreated(ctx, value)
	s.invalidateAverage(ctx, photoID)

	return rating, nil
}

// AverageRating returns the photo's mean rating rounded to two decimals,
// and false when nobody rated it yet
func (s *RatingServiceImpl) AverageRating(ctx context.Context, photoID int) (float64, bool, error) {
	cached, err := s.cache.GetAverage(ctx, photoID)
	if err == nil {
		s.metrics.CacheLookup(ctx, ratingCacheName, true)
		return cached, true, nil
	}
	if !errors.Is(err, photo.ErrCacheMiss) {
		s.logger.Warn(ctx).Err(err).Int("photo_id", photoID).Msg("Rating cache read failed")
	}
	s.metrics.CacheLookup(ctx, ratingCacheName, false)

	// Taken before the database read so a concurrent invalidation wins
	version, verErr := s.cache.AverageVersion(ctx, photoID)

	avg, ok, err := s.ratingRepo.Average(ctx, photoID)
	if err != nil || !ok {
		return 0, false, err
	}
	avg = photo.RoundAverage(avg)

	if verErr == nil {
		verErr = s.cache.FillAverage(ctx, photoID, avg, version)
	}
	if verErr != nil {
		s.logger.Warn(ctx).Err(verErr).Int("photo_id", photoID).Msg("Failed to cache rating average")
	}

	return avg, true, nil
}

// DeleteRating removes a rating and returns it, or nil when it did not exist
func (s *RatingServiceImpl) DeleteRating(ctx context.Context, ratingID int) (*photo.Rating, error) {
	rating, err := s.ratingRepo.Delete(ctx, ratingID)
	if err != nil {
		return nil, err
	}
	if rating != nil {
		s.invalidateAverage(ctx, rating.PhotoID)
	}
	return rating, nil
}

// GetUserRating returns the rating a user gave a photo
func (s *RatingServiceImpl) GetUserRating(ctx context.Context, photoID int, userID uuid.UUID) (*photo.Rating, error) {
	return s.ratingRepo.GetForUser(ctx, photoID, userID)
}

// ListPhotoRatings returns every rating of a photo
func (s *RatingServiceImpl) ListPhotoRatings(ctx context.Context, photoID int) ([]*photo.Rating, error) {
	return s.ratingRepo.ListForPhoto(ctx, photoID)
}

func (s *RatingServiceImpl) DropAverage(ctx context.Context, photoID int) {
	s.invalidateAverage(ctx, photoID)
}

func (s *RatingServiceImpl) invalidateAverage(ctx context.Context, photoID int) {
	if err := s.cache.InvalidateAverage(ctx, photoID); err != nil {
		s.logger.Warn(ctx).Err(err).Int("photo_id", photoID).Msg("Failed to invalidate rating average")
	}
}
