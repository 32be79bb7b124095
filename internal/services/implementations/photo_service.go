package implementations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
	"imagine/internal/platform/storage"
)

// PhotoServiceImpl implements the photo.PhotoService interface
type PhotoServiceImpl struct {
	photoRepo        photo.PhotoRepository
	tagRepo          photo.TagRepository
	tags             photo.TagService
	ratings          photo.RatingService
	host             photo.ImageHost
	transformer      photo.ImageTransformer
	uploads          photo.UploadValidator
	logger           *observability.Logger
	maxTransformSide int
	maxPageSize      int
	now              func() time.Time
}

// PhotoServiceDeps groups the collaborators of the photo service
type PhotoServiceDeps struct {
	PhotoRepo   photo.PhotoRepository
	TagRepo     photo.TagRepository
	Tags        photo.TagService
	Ratings     photo.RatingService
	Host        photo.ImageHost
	Transformer photo.ImageTransformer
	Uploads     photo.UploadValidator
	Logger      *observability.Logger

	MaxTransformSide int
	MaxPageSize      int
}

// NewPhotoService creates a new photo service implementation
func NewPhotoService(deps PhotoServiceDeps) photo.PhotoService {
	maxSide := deps.MaxTransformSide
	if maxSide <= 0 {
		maxSide = 4096
	}

	return &PhotoServiceImpl{
		photoRepo:        deps.PhotoRepo,
		tagRepo:          deps.TagRepo,
		tags:             deps.Tags,
		ratings:          deps.Ratings,
		host:             deps.Host,
		transformer:      deps.Transformer,
		uploads:          deps.Uploads,
		logger:           deps.Logger,
		maxTransformSide: maxSide,
		maxPageSize:      deps.MaxPageSize,
		now:              time.Now,
	}
}

// CreatePhoto validates and uploads the photo bytes, then stores the photo
// with its initial tags. The uploaded object is removed again if the
// database insert fails.
func (s *PhotoServiceImpl) CreatePhoto(ctx context.Context, req *photo.CreatePhotoRequest, data io.Reader) (*photo.Photo, error) {
	if err := photo.ValidateDescription(req.Description); err != nil {
		return nil, err
	}

	tagNames := photo.DedupeTagNames(req.Tags)
	for _, name := range tagNames {
		if err := photo.ValidateTagName(name); err != nil {
			return nil, err
		}
	}
	if err := s.tags.CheckTagCountWithinLimit(tagNames); err != nil {
		return nil, err
	}

	content, err := s.uploads.ValidateUpload(ctx, req, data)
	if err != nil {
		return nil, err
	}

	publicID := fmt.Sprintf("%s/%d%s", req.Owner, s.now().UnixNano(), storage.ExtensionFor(req.ContentType))
	url, err := s.host.Upload(ctx, publicID, bytes.NewReader(content), int64(len(content)), req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	p := &photo.Photo{
		PublicID:    publicID,
		Path:        url,
		Description: req.Description,
		UserID:      req.Owner,
	}

	if err := s.photoRepo.Create(ctx, p, tagNames); err != nil {
		// Try to cleanup the uploaded object
		if delErr := s.host.Delete(ctx, publicID); delErr != nil {
			s.logger.Warn(ctx).Err(delErr).Str("public_id", publicID).Msg("Failed to remove orphaned upload")
		}
		return nil, err
	}

	s.logger.Info(ctx).
		Int("photo_id", p.ID).
		Str("public_id", publicID).
		Str("owner", req.Owner.String()).
		Int("size", len(content)).
		Msg("Photo created")

	return p, nil
}

// GetPhoto retrieves a photo with its tags and average rating
func (s *PhotoServiceImpl) GetPhoto(ctx context.Context, id int) (*photo.Photo, error) {
	p, err := s.photoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	avg, ok, err := s.ratings.AverageRating(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		p.AverageRating = &avg
	}

	return p, nil
}

// ListPhotos retrieves photos with pagination
func (s *PhotoServiceImpl) ListPhotos(ctx context.Context, page photo.Pagination) ([]*photo.Photo, error) {
	photos, err := s.photoRepo.List(ctx, clampPage(page, s.maxPageSize))
	if err != nil {
		return nil, err
	}
	if err := loadTags(ctx, s.tagRepo, photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// ListUserPhotos retrieves the photos of one user with pagination
func (s *PhotoServiceImpl) ListUserPhotos(ctx context.Context, userID uuid.UUID, page photo.Pagination) ([]*photo.Photo, error) {
	photos, err := s.photoRepo.ListByUser(ctx, userID, clampPage(page, s.maxPageSize))
	if err != nil {
		return nil, err
	}
	if err := loadTags(ctx, s.tagRepo, photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// UpdateDescription changes a photo's description; owner or admin only
func (s *PhotoServiceImpl) UpdateDescription(ctx context.Context, id int, caller *photo.User, description string) (*photo.Photo, error) {
	if err := photo.ValidateDescription(description); err != nil {
		return nil, err
	}

	p, err := s.photoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(caller, p); err != nil {
		return nil, err
	}

	return s.photoRepo.UpdateDescription(ctx, id, description)
}

// DeletePhoto removes a photo with its ratings, then its stored objects;
// owner or admin only
func (s *PhotoServiceImpl) DeletePhoto(ctx context.Context, id int, caller *photo.User) error {
	p, err := s.photoRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwner(caller, p); err != nil {
		return err
	}

	if err := s.photoRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.ratings.DropAverage(ctx, id)

	objects := []string{p.PublicID}
	if p.PathTransform != nil {
		objects = append(objects, transformPublicID(p.PublicID))
	}
	for _, publicID := range objects {
		// The row is gone; a leftover object is only logged
		if err := s.host.Delete(ctx, publicID); err != nil {
			s.logger.Warn(ctx).Err(err).Str("public_id", publicID).Msg("Failed to delete stored photo object")
		}
	}

	s.logger.Info(ctx).Int("photo_id", id).Str("caller", caller.ID.String()).Msg("Photo deleted")
	return nil
}

// TransformPhoto resizes the original photo into a variant and records its
// URL; owner or admin only
func (s *PhotoServiceImpl) TransformPhoto(ctx context.Context, id int, caller *photo.User, opts photo.TransformOptions) (*photo.Photo, error) {
	if err := opts.Validate(s.maxTransformSide); err != nil {
		return nil, err
	}

	p, err := s.photoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(caller, p); err != nil {
		return nil, err
	}

	original, err := s.host.Download(ctx, p.PublicID)
	if err != nil {
		return nil, err
	}
	defer original.Close()

	out, err := s.transformer.Transform(ctx, original, opts)
	if err != nil {
		return nil, err
	}

	variantID := transformPublicID(p.PublicID)
	url, err := s.host.Upload(ctx, variantID, out.Data, out.Size, out.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store transformed photo: %w", err)
	}

	if err := s.photoRepo.UpdateTransformPath(ctx, id, url); err != nil {
		return nil, err
	}
	p.PathTransform = &url

	s.logger.Info(ctx).
		Int("photo_id", id).
		Str("mode", string(opts.Mode)).
		Int("width", opts.Width).
		Int("height", opts.Height).
		Msg("Photo transformed")

	return p, nil
}

// authorizeOwner allows the photo's owner and admins
func authorizeOwner(caller *photo.User, p *photo.Photo) error {
	if caller == nil {
		return fmt.Errorf("%w: authentication required", photo.ErrForbidden)
	}
	if caller.ID != p.UserID && !caller.HasRole(photo.RoleAdmin) {
		return fmt.Errorf("%w: only the owner or an admin can modify photo %d", photo.ErrForbidden, p.ID)
	}
	return nil
}

// transformPublicID names the single stored variant of a photo. Its
// extension follows the encoder's output: png and gif are kept, everything
// else is written as jpeg.
func transformPublicID(publicID string) string {
	ext := strings.ToLower(path.Ext(publicID))
	base := strings.TrimSuffix(publicID, path.Ext(publicID))

	switch ext {
	case ".png", ".gif":
	default:
		ext = ".jpg"
	}

	return base + "_transformed" + ext
}
