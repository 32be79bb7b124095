package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
)

const photoColumns = `p.id, p.public_id, p.path, p.path_transform, p.description, p.user_id, p.created_at, p.updated_at`

// photoRepository implements photo.PhotoRepository
type photoRepository struct {
	db *sql.DB
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db *sql.DB) photo.PhotoRepository {
	return &photoRepository{db: db}
}

// Create inserts the photo and its initial tags atomically
func (r *photoRepository) Create(ctx context.Context, p *photo.Photo, tagNames []string) error {
	return RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO photos (public_id, path, description, user_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query, p.PublicID, p.Path, p.Description, p.UserID).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: user %s", photo.ErrNotFound, p.UserID)
			}
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: public id %s already used", photo.ErrConflict, p.PublicID)
			}
			return err
		}

		p.Tags = make([]photo.Tag, 0, len(tagNames))
		for _, name := range tagNames {
			tag, err := getOrCreateTag(ctx, tx, name)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO photo_tags (photo_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				p.ID, tag.ID,
			); err != nil {
				return err
			}
			p.Tags = append(p.Tags, *tag)
		}
		return nil
	})
}

// GetByID retrieves a photo with its tags
func (r *photoRepository) GetByID(ctx context.Context, id int) (*photo.Photo, error) {
	p, err := scanPhoto(r.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos p WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, id)
		}
		return nil, err
	}

	p.Tags, err = listTagsForPhoto(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List retrieves a page of photos ordered by id
func (r *photoRepository) List(ctx context.Context, page photo.Pagination) ([]*photo.Photo, error) {
	page.Normalize()

	query := `SELECT ` + photoColumns + ` FROM photos p ORDER BY p.id ASC LIMIT $1 OFFSET $2`
	return queryPhotos(ctx, r.db, query, page.Limit, page.Offset)
}

// ListByUser retrieves a page of one user's photos
func (r *photoRepository) ListByUser(ctx context.Context, userID uuid.UUID, page photo.Pagination) ([]*photo.Photo, error) {
	page.Normalize()

	query := `SELECT ` + photoColumns + ` FROM photos p WHERE p.user_id = $1 ORDER BY p.id ASC LIMIT $2 OFFSET $3`
	return queryPhotos(ctx, r.db, query, userID, page.Limit, page.Offset)
}

// UpdateDescription replaces the description and returns the updated photo
func (r *photoRepository) UpdateDescription(ctx context.Context, id int, description string) (*photo.Photo, error) {
	query := `
		UPDATE photos p SET description = $2
		WHERE p.id = $1
		RETURNING ` + photoColumns

	p, err := scanPhoto(r.db.QueryRowContext(ctx, query, id, description))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, id)
		}
		return nil, err
	}

	p.Tags, err = listTagsForPhoto(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateTransformPath stores the URL of the transformed variant
func (r *photoRepository) UpdateTransformPath(ctx context.Context, id int, path string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE photos SET path_transform = $2 WHERE id = $1`, id, path)
	if err != nil {
		return err
	}
	return expectAffected(result, fmt.Errorf("%w: photo %d", photo.ErrNotFound, id))
}

// Delete removes ratings first, then the photo; comments and tag links cascade
func (r *photoRepository) Delete(ctx context.Context, id int) error {
	return RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE photo_id = $1`, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectAffected(result, fmt.Errorf("%w: photo %d", photo.ErrNotFound, id))
	})
}

// CountByUser returns how many photos a user owns
func (r *photoRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*photo.Photo, error) {
	p := &photo.Photo{}
	var pathTransform sql.NullString
	err := row.Scan(
		&p.ID,
		&p.PublicID,
		&p.Path,
		&pathTransform,
		&p.Description,
		&p.UserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pathTransform.Valid {
		p.PathTransform = &pathTransform.String
	}
	p.Tags = []photo.Tag{}
	return p, nil
}

func queryPhotos(ctx context.Context, q DBTX, query string, args ...any) ([]*photo.Photo, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	photos := make([]*photo.Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}

	return photos, rows.Err()
}

func expectAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
