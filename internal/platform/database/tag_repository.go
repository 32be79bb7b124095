package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"imagine/internal/domain/photo"
)

// tagRepository implements photo.TagRepository
type tagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new TagRepository
func NewTagRepository(db *sql.DB) photo.TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreate returns the tag with the exact name, creating it if absent
func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (*photo.Tag, error) {
	return getOrCreateTag(ctx, r.db, name)
}

// GetByName retrieves a tag by its exact name
func (r *tagRepository) GetByName(ctx context.Context, name string) (*photo.Tag, error) {
	tag, err := selectTagByName(ctx, r.db, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tag %q", photo.ErrNotFound, name)
	}
	return tag, err
}

// List retrieves a page of tags ordered by name
func (r *tagRepository) List(ctx context.Context, page photo.Pagination) ([]*photo.Tag, error) {
	page.Normalize()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM tags
		ORDER BY name ASC
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	tags := make([]*photo.Tag, 0)
	for rows.Next() {
		tag := &photo.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// ListForPhoto retrieves the tags attached to one photo
func (r *tagRepository) ListForPhoto(ctx context.Context, photoID int) ([]photo.Tag, error) {
	exists, err := photoExists(ctx, r.db, photoID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
	}
	return listTagsForPhoto(ctx, r.db, photoID)
}

// ListForPhotos retrieves tags for many photos in one round trip
func (r *tagRepository) ListForPhotos(ctx context.Context, photoIDs []int) (map[int][]photo.Tag, error) {
	result := make(map[int][]photo.Tag, len(photoIDs))
	if len(photoIDs) == 0 {
		return result, nil
	}

	ids := make([]int64, len(photoIDs))
	for i, id := range photoIDs {
		ids[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT pt.photo_id, t.id, t.name, t.created_at
		FROM photo_tags pt
		INNER JOIN tags t ON t.id = pt.tag_id
		WHERE pt.photo_id = ANY($1)
		ORDER BY pt.photo_id, t.name ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	for rows.Next() {
		var photoID int
		var tag photo.Tag
		if err := rows.Scan(&photoID, &tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		result[photoID] = append(result[photoID], tag)
	}

	return result, rows.Err()
}

// Attach links a tag to a photo. The photo row lock serializes concurrent
// attaches so the count check and the insert are atomic; the composite
// primary key catches any duplicate pair that slips past the read.
func (r *tagRepository) Attach(ctx context.Context, photoID int, tagName string) (*photo.Tag, error) {
	var attached *photo.Tag

	err := RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked int
		err := tx.QueryRowContext(ctx, `SELECT id FROM photos WHERE id = $1 FOR UPDATE`, photoID).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
			}
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM photo_tags WHERE photo_id = $1`, photoID).Scan(&count); err != nil {
			return err
		}
		if count >= photo.MaxTagsPerPhoto {
			return fmt.Errorf("%w: photo %d already has %d tags", photo.ErrLimitExceeded, photoID, count)
		}

		tag, err := getOrCreateTag(ctx, tx, tagName)
		if err != nil {
			return err
		}

		var linked bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM photo_tags WHERE photo_id = $1 AND tag_id = $2)`,
			photoID, tag.ID,
		).Scan(&linked)
		if err != nil {
			return err
		}
		if linked {
			return fmt.Errorf("%w: tag %q already attached to photo %d", photo.ErrConflict, tagName, photoID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO photo_tags (photo_id, tag_id) VALUES ($1, $2)`,
			photoID, tag.ID,
		); err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: tag %q already attached to photo %d", photo.ErrConflict, tagName, photoID)
			}
			return err
		}

		attached = tag
		return nil
	})
	if err != nil {
		return nil, err
	}

	return attached, nil
}

// Detach unlinks a tag from a photo. The tag itself is kept.
func (r *tagRepository) Detach(ctx context.Context, photoID int, tagName string) error {
	return RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		exists, err := photoExists(ctx, tx, photoID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
		}

		tag, err := selectTagByName(ctx, tx, tagName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: tag %q", photo.ErrNotFound, tagName)
			}
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM photo_tags WHERE photo_id = $1 AND tag_id = $2`,
			photoID, tag.ID,
		)
		if err != nil {
			return err
		}
		return expectAffected(result,
			fmt.Errorf("%w: tag %q is not attached to photo %d", photo.ErrInvalidState, tagName, photoID))
	})
}

// getOrCreateTag resolves a tag inside q's transaction scope. A concurrent
// creator of the same name makes the insert a no-op, so the lookup is
// repeated to pick up the winner's row.
func getOrCreateTag(ctx context.Context, q DBTX, name string) (*photo.Tag, error) {
	tag, err := selectTagByName(ctx, q, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	tag = &photo.Tag{}
	err = q.QueryRowContext(ctx, `
		INSERT INTO tags (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`, name).Scan(&tag.ID, &tag.Name, &tag.CreatedAt)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return selectTagByName(ctx, q, name)
}

func selectTagByName(ctx context.Context, q DBTX, name string) (*photo.Tag, error) {
	tag := &photo.Tag{}
	err := q.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, name).
		Scan(&tag.ID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func listTagsForPhoto(ctx context.Context, q DBTX, photoID int) ([]photo.Tag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at
		FROM tags t
		INNER JOIN photo_tags pt ON t.id = pt.tag_id
		WHERE pt.photo_id = $1
		ORDER BY t.name ASC
	`, photoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	tags := make([]photo.Tag, 0)
	for rows.Next() {
		var tag photo.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

func photoExists(ctx context.Context, q DBTX, photoID int) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM photos WHERE id = $1)`, photoID).Scan(&exists)
	return exists, err
}
