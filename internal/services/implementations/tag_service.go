package implementations

import (
	"context"
	"fmt"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
)

// TagServiceImpl implements the photo.TagService interface
type TagServiceImpl struct {
	tagRepo photo.TagRepository
	metrics *observability.DomainMetrics
	logger  *observability.Logger
}

// NewTagService creates a new tag service implementation
func NewTagService(
	tagRepo photo.TagRepository,
	metrics *observability.DomainMetrics,
	logger *observability.Logger,
) photo.TagService {
	return &TagServiceImpl{
		tagRepo: tagRepo,
		metrics: metrics,
		logger:  logger,
	}
}

// GetOrCreateTag returns the tag with name, creating it on first use
func (s *TagServiceImpl) GetOrCreateTag(ctx context.Context, name string) (*photo.Tag, error) {
	if err := photo.ValidateTagName(name); err != nil {
		return nil, err
	}
	return s.tagRepo.GetOrCreate(ctx, name)
}

// AssembleTags resolves every name to a tag, in input order. Duplicates
// are not removed.
func (s *TagServiceImpl) AssembleTags(ctx context.Context, names []string) ([]photo.Tag, error) {
	tags := make([]photo.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.GetOrCreateTag(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

// CheckTagCountWithinLimit rejects tag lists longer than the per-photo limit
func (s *TagServiceImpl) CheckTagCountWithinLimit(names []string) error {
	if len(names) > photo.MaxTagsPerPhoto {
		return fmt.Errorf("%w: a photo can have at most %d tags", photo.ErrValidation, photo.MaxTagsPerPhoto)
	}
	return nil
}

// AttachTag links the named tag to a photo
func (s *TagServiceImpl) AttachTag(ctx context.Context, photoID int, tagName string) (*photo.Tag, error) {
	if err := photo.ValidateTagName(tagName); err != nil {
		s.metrics.AttachRejected(ctx, photo.Kind(err))
		return nil, err
	}

	tag, err := s.tagRepo.Attach(ctx, photoID, tagName)
	if err != nil {
		s.metrics.AttachRejected(ctx, photo.Kind(err))
		return nil, err
	}

	s.metrics.TagAttached(ctx)
	s.logger.Debug(ctx).
		Int("photo_id", photoID).
		Int("tag_id", tag.ID).
		Str("tag", tag.Name).
		Msg("Tag attached")

	return tag, nil
}

// DetachTag removes the association between a photo and the named tag
func (s *TagServiceImpl) DetachTag(ctx context.Context, photoID int, tagName string) error {
	if err := photo.ValidateText("tag name", tagName); err != nil {
		return err
	}
	if err := s.tagRepo.Detach(ctx, photoID, tagName); err != nil {
		return err
	}

	s.metrics.TagDetached(ctx)
	s.logger.Debug(ctx).
		Int("photo_id", photoID).
		Str("tag", tagName).
		Msg("Tag detached")

	return nil
}

// ListPhotoTags returns the tags of one photo ordered by name
func (s *TagServiceImpl) ListPhotoTags(ctx context.Context, photoID int) ([]photo.Tag, error) {
	return s.tagRepo.ListForPhoto(ctx, photoID)
}

// ListTags retrieves tags with pagination
func (s *TagServiceImpl) ListTags(ctx context.Context, page photo.Pagination) ([]*photo.Tag, error) {
	page.Normalize()
	return s.tagRepo.List(ctx, page)
}
