// Package photo holds the domain model of the photo-sharing service:
// photos, shared tags, ratings, comments and the users that own them.
package photo

import (
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Domain limits
const (
	MaxTagsPerPhoto   = 5
	MaxTagNameLen     = 30
	MaxDescriptionLen = 250
	MaxCommentLen     = 250
	MinUsernameLen    = 3
	MaxUsernameLen    = 50
	MaxNameLen        = 50
	MaxEmailLen       = 150

	MinRating = 1
	MaxRating = 5

	DefaultPageSize = 10
	MaxPageSize     = 500
)

// Role is the access level of a user account
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// Photo is an uploaded image with its description and owner
type Photo struct {
	ID            int       `json:"id"`
	PublicID      string    `json:"public_id"`
	Path          string    `json:"path"`
	PathTransform *string   `json:"path_transform,omitempty"`
	Description   string    `json:"description"`
	UserID        uuid.UUID `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Tags          []Tag     `json:"tags"`
	// AverageRating is only filled for single-photo reads
	AverageRating *float64 `json:"average_rating,omitempty"`
}

// Tag is a free-text label shared across photos, unique by exact name
type Tag struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Rating is a single user's 1..5 score for a photo
type Rating struct {
	ID        int       `json:"id"`
	Rating    int       `json:"rating"`
	PhotoID   int       `json:"photo_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a user's opinion attached to a photo
type Comment struct {
	ID        int       `json:"id"`
	Opinion   string    `json:"opinion"`
	PhotoID   int       `json:"photo_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account known to the service. Authentication happens upstream.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Role      Role       `json:"role"`
	Banned    bool       `json:"banned"`
	BannedAt  *time.Time `json:"banned_at,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasRole reports whether the user holds any of the given roles
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Profile is the public view of a user with their photo count
type Profile struct {
	Username   string    `json:"username"`
	Name       string    `json:"name,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	PhotoCount int       `json:"photo_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pagination is a limit/offset window
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize applies the default page size and clamps out-of-range values
func (p *Pagination) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// RatingRange bounds the average rating of search results
type RatingRange struct {
	Min float64
	Max float64
}

// NewRatingRange builds a range from optional bounds. A missing bound
// defaults to the edge of the valid rating scale. It returns nil when both
// bounds are absent.
func NewRatingRange(minRating, maxRating *float64) (*RatingRange, error) {
	if minRating == nil && maxRating == nil {
		return nil, nil
	}

	r := &RatingRange{Min: MinRating, Max: MaxRating}
	if minRating != nil {
		r.Min = *minRating
	}
	if maxRating != nil {
		r.Max = *maxRating
	}

	if r.Min < MinRating || r.Min > MaxRating || math.IsNaN(r.Min) {
		return nil, fmt.Errorf("%w: rating_min must be between %d and %d", ErrValidation, MinRating, MaxRating)
	}
	if r.Max < MinRating || r.Max > MaxRating || math.IsNaN(r.Max) {
		return nil, fmt.Errorf("%w: rating_max must be between %d and %d", ErrValidation, MinRating, MaxRating)
	}
	if r.Min > r.Max {
		return nil, fmt.Errorf("%w: rating_min cannot exceed rating_max", ErrValidation)
	}

	return r, nil
}

// SearchQuery is one page of a keyword search, optionally filtered by
// average rating
type SearchQuery struct {
	Keyword    string
	Rating     *RatingRange
	Pagination Pagination
}

// CreatePhotoRequest carries the metadata of an upload
type CreatePhotoRequest struct {
	Owner       uuid.UUID
	Description string
	Tags        []string
	Filename    string
	ContentType string
	Size        int64
}

// TransformMode selects how a photo is fitted into the requested box
type TransformMode string

const (
	// TransformFit scales the photo to fit inside the box, keeping aspect ratio
	TransformFit TransformMode = "fit"
	// TransformFill scales and crops the photo to exactly the box size
	TransformFill TransformMode = "fill"
)

// TransformOptions describes a requested photo transformation
type TransformOptions struct {
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Mode   TransformMode `json:"mode"`
}

// Validate checks dimensions and mode against maxSide
func (o *TransformOptions) Validate(maxSide int) error {
	if o.Mode == "" {
		o.Mode = TransformFit
	}
	if o.Mode != TransformFit && o.Mode != TransformFill {
		return fmt.Errorf("%w: unknown transform mode %q", ErrValidation, o.Mode)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrValidation)
	}
	if o.Width > maxSide || o.Height > maxSide {
		return fmt.Errorf("%w: width and height cannot exceed %d", ErrValidation, maxSide)
	}
	return nil
}

// ValidateTagName checks a single tag name. Names are stored verbatim.
func ValidateTagName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: tag name cannot be empty", ErrValidation)
	}
	if err := ValidateText("tag name", name); err != nil {
		return err
	}
	if utf8.RuneCountInString(name) > MaxTagNameLen {
		return fmt.Errorf("%w: tag name too long (max %d characters)", ErrValidation, MaxTagNameLen)
	}
	return nil
}

// ValidateKeyword checks a search keyword
func ValidateKeyword(keyword string) error {
	if strings.TrimSpace(keyword) == "" {
		return fmt.Errorf("%w: keyword cannot be empty", ErrValidation)
	}
	return ValidateText("keyword", keyword)
}

// ValidateText rejects what a Postgres text column cannot hold: invalid
// UTF-8 and NUL bytes
func ValidateText(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s contains invalid UTF-8", ErrValidation, field)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s contains a NUL character", ErrValidation, field)
	}
	return nil
}

// ValidateRatingValue checks that value lies on the 1..5 scale
func ValidateRatingValue(value int) error {
	if value < MinRating || value > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, MinRating, MaxRating)
	}
	return nil
}

// ValidateDescription checks a photo description
func ValidateDescription(description string) error {
	if err := ValidateText("description", description); err != nil {
		return err
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, MaxDescriptionLen)
	}
	return nil
}

// ValidateComment checks comment text
func ValidateComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: comment cannot be empty", ErrValidation)
	}
	if err := ValidateText("comment", text); err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > MaxCommentLen {
		return fmt.Errorf("%w: comment too long (max %d characters)", ErrValidation, MaxCommentLen)
	}
	return nil
}

// ValidateNewUser checks the fields of a registration
func ValidateNewUser(username, email, name string) error {
	for _, f := range [...]struct{ field, value string }{
		{"username", username}, {"email", email}, {"name", name},
	} {
		if err := ValidateText(f.field, f.value); err != nil {
			return err
		}
	}
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, MinUsernameLen, MaxUsernameLen)
	}
	if len(email) > MaxEmailLen {
		return fmt.Errorf("%w: email too long", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrValidation, MaxNameLen)
	}
	return nil
}

// DedupeTagNames drops repeated names, keeping first occurrences in order
func DedupeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// RoundAverage rounds a mean rating to two decimal places
func RoundAverage(avg float64) float64 {
	return math.Round(avg*100) / 100
}
