package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"imagine/internal/domain/photo"
)

const commentColumns = `id, opinion, photo_id, user_id, created_at, updated_at`

// commentRepository implements photo.CommentRepository
type commentRepository struct {
	db *sql.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *sql.DB) photo.CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a comment; a missing photo or user maps to ErrNotFound
func (r *commentRepository) Create(ctx context.Context, c *photo.Comment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO comments (opinion, photo_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, c.Opinion, c.PhotoID, c.UserID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: photo %d", photo.ErrNotFound, c.PhotoID)
		}
		return err
	}
	return nil
}

// GetByID retrieves a comment by its ID
func (r *commentRepository) GetByID(ctx context.Context, id int) (*photo.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: comment %d", photo.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// ListForPhoto retrieves a page of a photo's comments, oldest first
func (r *commentRepository) ListForPhoto(ctx context.Context, photoID int, page photo.Pagination) ([]*photo.Comment, error) {
	page.Normalize()

	exists, err := photoExists(ctx, r.db, photoID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE photo_id = $1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`, photoID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	comments := make([]*photo.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

// Update replaces the comment text
func (r *commentRepository) Update(ctx context.Context, id int, opinion string) (*photo.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx,
		`UPDATE comments SET opinion = $2 WHERE id = $1 RETURNING `+commentColumns, id, opinion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: comment %d", photo.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// Delete removes a comment by ID
func (r *commentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result, fmt.Errorf("%w: comment %d", photo.ErrNotFound, id))
}

func scanComment(row rowScanner) (*photo.Comment, error) {
	c := &photo.Comment{}
	if err := row.Scan(&c.ID, &c.Opinion, &c.PhotoID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
