package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
)

const userColumns = `id, username, email, name, role, banned, banned_at, avatar, created_at, updated_at`

// firstUserLockKey serializes registrations so exactly one account is
// promoted to admin
const firstUserLockKey = 7231001

// userRepository implements photo.UserRepository
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) photo.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a user. The role is admin for the first account and user
// for every later one.
func (r *userRepository) Create(ctx context.Context, u *photo.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	return RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, firstUserLockKey); err != nil {
			return err
		}

		created, err := scanUser(tx.QueryRowContext(ctx, `
			INSERT INTO users (id, username, email, name, role)
			VALUES ($1, $2, $3, NULLIF($4, ''),
				CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'user' ELSE 'admin' END)
			RETURNING `+userColumns,
			u.ID, u.Username, u.Email, u.Name,
		))
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: username or email already registered", photo.ErrConflict)
			}
			return err
		}

		*u = *created
		return nil
	})
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*photo.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", photo.ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*photo.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %q", photo.ErrNotFound, username)
		}
		return nil, err
	}
	return u, nil
}

// List retrieves a page of users ordered by registration time
func (r *userRepository) List(ctx context.Context, page photo.Pagination) ([]*photo.User, error) {
	page.Normalize()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	users := make([]*photo.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// SetBanned bans or unbans a user, stamping banned_at accordingly
func (r *userRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) (*photo.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users
		SET banned = $2,
			banned_at = CASE WHEN $2 THEN NOW() ELSE NULL END
		WHERE id = $1
		RETURNING `+userColumns,
		id, banned,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", photo.ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

// SetRole changes a user's role
func (r *userRepository) SetRole(ctx context.Context, id uuid.UUID, role photo.Role) (*photo.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns,
		id, string(role),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", photo.ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row rowScanner) (*photo.User, error) {
	u := &photo.User{}
	var (
		name     sql.NullString
		role     string
		bannedAt sql.NullTime
		avatar   sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&name,
		&role,
		&u.Banned,
		&bannedAt,
		&avatar,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Name = name.String
	u.Role = photo.Role(role)
	u.Avatar = avatar.String
	if bannedAt.Valid {
		u.BannedAt = &bannedAt.Time
	}
	return u, nil
}
