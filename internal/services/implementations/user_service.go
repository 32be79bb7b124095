package implementations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
)

const userCacheName = "user"

// UserServiceImpl implements the photo.UserService interface
type UserServiceImpl struct {
	userRepo  photo.UserRepository
	photoRepo photo.PhotoRepository
	cache     photo.UserCache
	metrics   *observability.DomainMetrics
	logger    *observability.Logger
}

// NewUserService creates a new user service implementation
func NewUserService(
	userRepo photo.UserRepository,
	photoRepo photo.PhotoRepository,
	cache photo.UserCache,
	metrics *observability.DomainMetrics,
	logger *observability.Logger,
) photo.UserService {
	return &UserServiceImpl{
		userRepo:  userRepo,
		photoRepo: photoRepo,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateUser registers an account. The first account becomes admin.
func (s *UserServiceImpl) CreateUser(ctx context.Context, username, email, name string) (*photo.User, error) {
	if err := photo.ValidateNewUser(username, email, name); err != nil {
		return nil, err
	}

	u := &photo.User{
		Username: username,
		Email:    email,
		Name:     name,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	// A fresh id has never been evicted
	s.fillUser(ctx, u, 0)
	s.logger.Info(ctx).
		Str("user_id", u.ID.String()).
		Str("username", u.Username).
		Str("role", string(u.Role)).
		Msg("User created")

	return u, nil
}

// GetUser reads a user through the cache, filling it on a miss
func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*photo.User, error) {
	cached, err := s.cache.GetUser(ctx, id)
	if err == nil {
		s.metrics.CacheLookup(ctx, userCacheName, true)
		return cached, nil
	}
	if !errors.Is(err, photo.ErrCacheMiss) {
		s.logger.Warn(ctx).Err(err).Str("user_id", id.String()).Msg("User cache read failed")
	}
	s.metrics.CacheLookup(ctx, userCacheName, false)

	// Taken before the database read so a concurrent ban or role change wins
	version, verErr := s.cache.UserVersion(ctx, id)

	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if verErr == nil {
		s.fillUser(ctx, u, version)
	} else {
		s.logger.Warn(ctx).Err(verErr).Str("user_id", id.String()).Msg("Failed to cache user")
	}
	return u, nil
}

// GetProfile returns the public profile of a user with their photo count
func (s *UserServiceImpl) GetProfile(ctx context.Context, username string) (*photo.Profile, error) {
	u, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	count, err := s.photoRepo.CountByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &photo.Profile{
		Username:   u.Username,
		Name:       u.Name,
		Avatar:     u.Avatar,
		PhotoCount: count,
		CreatedAt:  u.CreatedAt,
	}, nil
}

// ListUsers retrieves users with pagination
func (s *UserServiceImpl) ListUsers(ctx context.Context, page photo.Pagination) ([]*photo.User, error) {
	page.Normalize()
	return s.userRepo.List(ctx, page)
}

// SetBanned bans or unbans a user and evicts the cached entry
func (s *UserServiceImpl) SetBanned(ctx context.Context, id uuid.UUID, banned bool) (*photo.User, error) {
	u, err := s.userRepo.SetBanned(ctx, id, banned)
	if err != nil {
		return nil, err
	}

	s.evictUser(ctx, id)
	s.logger.Info(ctx).Str("user_id", id.String()).Bool("banned", banned).Msg("User ban state changed")

	return u, nil
}

// ChangeRole assigns a new role and evicts the cached entry
func (s *UserServiceImpl) ChangeRole(ctx context.Context, id uuid.UUID, role photo.Role) (*photo.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", photo.ErrValidation, role)
	}

	u, err := s.userRepo.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}

	s.evictUser(ctx, id)
	s.logger.Info(ctx).Str("user_id", id.String()).Str("role", string(role)).Msg("User role changed")

	return u, nil
}

func (s *UserServiceImpl) fillUser(ctx context.Context, u *photo.User, version int64) {
	if err := s.cache.FillUser(ctx, u, version); err != nil {
		s.logger.Warn(ctx).Err(err).Str("user_id", u.ID.String()).Msg("Failed to cache user")
	}
}

// evictUser runs after commit; the next read reloads the row
func (s *UserServiceImpl) evictUser(ctx context.Context, id uuid.UUID) {
	if err := s.cache.EvictUser(ctx, id); err != nil {
		s.logger.Warn(ctx).Err(err).Str("user_id", id.String()).Msg("Failed to evict cached user")
	}
}
