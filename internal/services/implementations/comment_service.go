package implementations

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
)

// CommentServiceImpl implements the photo.CommentService interface
type CommentServiceImpl struct {
	commentRepo photo.CommentRepository
	logger      *observability.Logger
}

// NewCommentService creates a new comment service implementation
func NewCommentService(commentRepo photo.CommentRepository, logger *observability.Logger) photo.CommentService {
	return &CommentServiceImpl{
		commentRepo: commentRepo,
		logger:      logger,
	}
}

// CreateComment adds a comment to a photo
func (s *CommentServiceImpl) CreateComment(ctx context.Context, photoID int, userID uuid.UUID, text string) (*photo.Comment, error) {
	if err := photo.ValidateComment(text); err != nil {
		return nil, err
	}

	c := &photo.Comment{
		Opinion: text,
		PhotoID: photoID,
		UserID:  userID,
	}
	if err := s.commentRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx).Int("comment_id", c.ID).Int("photo_id", photoID).Msg("Comment created")
	return c, nil
}

// ListComments retrieves the comments of a photo with pagination
func (s *CommentServiceImpl) ListComments(ctx context.Context, photoID int, page photo.Pagination) ([]*photo.Comment, error) {
	page.Normalize()
	return s.commentRepo.ListForPhoto(ctx, photoID, page)
}

// EditComment replaces a comment's text; only its author may edit it
func (s *CommentServiceImpl) EditComment(ctx context.Context, id int, caller *photo.User, text string) (*photo.Comment, error) {
	if err := photo.ValidateComment(text); err != nil {
		return nil, err
	}

	c, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller == nil || c.UserID != caller.ID {
		return nil, fmt.Errorf("%w: only the author can edit comment %d", photo.ErrForbidden, id)
	}

	return s.commentRepo.Update(ctx, id, text)
}

// DeleteComment removes a comment
func (s *CommentServiceImpl) DeleteComment(ctx context.Context, id int) error {
	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info(ctx).Int("comment_id", id).Msg("Comment deleted")
	return nil
}
