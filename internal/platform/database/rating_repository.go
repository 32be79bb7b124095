package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
)

const ratingColumns = `id, rating, photo_id, user_id, created_at, updated_at`

// ratingRepository implements photo.RatingRepository
type ratingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new RatingRepository
func NewRatingRepository(db *sql.DB) photo.RatingRepository {
	return &ratingRepository{db: db}
}

// Create records a user's rating for a photo. The prior read gives the
// common case a clear error; the (photo_id, user_id) unique constraint
// settles concurrent duplicates.
func (r *ratingRepository) Create(ctx context.Context, photoID int, userID uuid.UUID, value int) (*photo.Rating, error) {
	var created *photo.Rating

	err := RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		exists, err := photoExists(ctx, tx, photoID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
		}

		var rated bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM ratings WHERE photo_id = $1 AND user_id = $2)`,
			photoID, userID,
		).Scan(&rated)
		if err != nil {
			return err
		}
		if rated {
			return fmt.Errorf("%w: user %s already rated photo %d", photo.ErrAlreadyRated, userID, photoID)
		}

		rating, err := scanRating(tx.QueryRowContext(ctx, `
			INSERT INTO ratings (rating, photo_id, user_id)
			VALUES ($1, $2, $3)
			RETURNING `+ratingColumns,
			value, photoID, userID,
		))
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: user %s already rated photo %d", photo.ErrAlreadyRated, userID, photoID)
			}
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: user %s", photo.ErrNotFound, userID)
			}
			return err
		}

		created = rating
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Average returns the mean rating of a photo. ok is false when the photo
// has no ratings.
func (r *ratingRepository) Average(ctx context.Context, photoID int) (float64, bool, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(rating)::float8 FROM ratings WHERE photo_id = $1`, photoID,
	).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// GetForUser returns the rating a user gave a photo
func (r *ratingRepository) GetForUser(ctx context.Context, photoID int, userID uuid.UUID) (*photo.Rating, error) {
	rating, err := scanRating(r.db.QueryRowContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE photo_id = $1 AND user_id = $2`,
		photoID, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no rating from user %s for photo %d", photo.ErrNotFound, userID, photoID)
		}
		return nil, err
	}
	return rating, nil
}

// ListForPhoto returns every rating of a photo ordered by id
func (r *ratingRepository) ListForPhoto(ctx context.Context, photoID int) ([]*photo.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE photo_id = $1 ORDER BY id ASC`, photoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	ratings := make([]*photo.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}

// Delete removes a rating in a single statement and returns it, or nil
// when no rating has that id
func (r *ratingRepository) Delete(ctx context.Context, id int) (*photo.Rating, error) {
	rating, err := scanRating(r.db.QueryRowContext(ctx,
		`DELETE FROM ratings WHERE id = $1 RETURNING `+ratingColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rating, nil
}

func scanRating(row rowScanner) (*photo.Rating, error) {
	rating := &photo.Rating{}
	err := row.Scan(
		&rating.ID,
		&rating.Rating,
		&rating.PhotoID,
		&rating.UserID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rating, nil
}
