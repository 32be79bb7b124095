package photo

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Repository ports

// PhotoRepository persists photos
type PhotoRepository interface {
	// Create inserts the photo and attaches tagNames in one transaction
	Create(ctx context.Context, p *Photo, tagNames []string) error
	GetByID(ctx context.Context, id int) (*Photo, error)
	List(ctx context.Context, page Pagination) ([]*Photo, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page Pagination) ([]*Photo, error)
	UpdateDescription(ctx context.Context, id int, description string) (*Photo, error)
	UpdateTransformPath(ctx context.Context, id int, path string) error
	// Delete removes the photo with its ratings. Comments and tag
	// associations cascade.
	Delete(ctx context.Context, id int) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// TagRepository persists tags and photo-tag associations
type TagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*Tag, error)
	GetByName(ctx context.Context, name string) (*Tag, error)
	List(ctx context.Context, page Pagination) ([]*Tag, error)
	ListForPhoto(ctx context.Context, photoID int) ([]Tag, error)
	ListForPhotos(ctx context.Context, photoIDs []int) (map[int][]Tag, error)
	// Attach links the named tag to the photo, creating the tag if needed.
	// The photo row is locked for the duration of the check-and-insert.
	Attach(ctx context.Context, photoID int, tagName string) (*Tag, error)
	Detach(ctx context.Context, photoID int, tagName string) error
}

// RatingRepository persists ratings
type RatingRepository interface {
	Create(ctx context.Context, photoID int, userID uuid.UUID, value int) (*Rating, error)
	// Average returns the mean rating and false when the photo has none
	Average(ctx context.Context, photoID int) (float64, bool, error)
	GetForUser(ctx context.Context, photoID int, userID uuid.UUID) (*Rating, error)
	ListForPhoto(ctx context.Context, photoID int) ([]*Rating, error)
	// Delete removes and returns the rating, or nil when it does not exist
	Delete(ctx context.Context, id int) (*Rating, error)
}

// SearchRepository runs the two halves of a keyword search
type SearchRepository interface {
	ByDescription(ctx context.Context, q SearchQuery) ([]*Photo, error)
	ByTagName(ctx context.Context, q SearchQuery) ([]*Photo, error)
}

// CommentRepository persists comments
type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id int) (*Comment, error)
	ListForPhoto(ctx context.Context, photoID int, page Pagination) ([]*Comment, error)
	Update(ctx context.Context, id int, opinion string) (*Comment, error)
	Delete(ctx context.Context, id int) error
}

// UserRepository persists user accounts
type UserRepository interface {
	// Create inserts the user. The first account ever created becomes admin.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, page Pagination) ([]*User, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) (*User, error)
	SetRole(ctx context.Context, id uuid.UUID, role Role) (*User, error)
}

// Infrastructure ports

// UserCache caches user accounts. A reader takes the entry's version before
// loading from the database and fills with it; eviction bumps the version, so
// a fill that raced with a mutation is dropped.
type UserCache interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UserVersion(ctx context.Context, id uuid.UUID) (int64, error)
	FillUser(ctx context.Context, u *User, version int64) error
	EvictUser(ctx context.Context, id uuid.UUID) error
}

// RatingCache caches per-photo average ratings with the same version rule
// as UserCache
type RatingCache interface {
	GetAverage(ctx context.Context, photoID int) (float64, error)
	AverageVersion(ctx context.Context, photoID int) (int64, error)
	FillAverage(ctx context.Context, photoID int, avg float64, version int64) error
	InvalidateAverage(ctx context.Context, photoID int) error
}

// ImageHost stores photo bytes under a caller-chosen public id and returns
// a public URL for them
type ImageHost interface {
	Upload(ctx context.Context, publicID string, data io.Reader, size int64, contentType string) (string, error)
	Download(ctx context.Context, publicID string) (io.ReadCloser, error)
	Delete(ctx context.Context, publicID string) error
}

// UploadValidator vets uploaded photo bytes and returns them buffered
type UploadValidator interface {
	ValidateUpload(ctx context.Context, req *CreatePhotoRequest, data io.Reader) ([]byte, error)
}

// ImageTransformer resizes encoded images
type ImageTransformer interface {
	Transform(ctx context.Context, data io.Reader, opts TransformOptions) (*TransformedImage, error)
}

// TransformedImage is an encoded transformation result
type TransformedImage struct {
	Data        io.Reader
	Size        int64
	ContentType string
	Extension   string
}

// Service ports consumed by the HTTP layer

// TagService is the tag registry and photo-tag association manager
type TagService interface {
	GetOrCreateTag(ctx context.Context, name string) (*Tag, error)
	AssembleTags(ctx context.Context, names []string) ([]Tag, error)
	CheckTagCountWithinLimit(names []string) error
	AttachTag(ctx context.Context, photoID int, tagName string) (*Tag, error)
	DetachTag(ctx context.Context, photoID int, tagName string) error
	ListPhotoTags(ctx context.Context, photoID int) ([]Tag, error)
	ListTags(ctx context.Context, page Pagination) ([]*Tag, error)
}

// RatingService is the rating aggregator
type RatingService interface {
	CreateRating(ctx context.Context, photoID int, userID uuid.UUID, value int) (*Rating, error)
	AverageRating(ctx context.Context, photoID int) (float64, bool, error)
	DeleteRating(ctx context.Context, ratingID int) (*Rating, error)
	GetUserRating(ctx context.Context, photoID int, userID uuid.UUID) (*Rating, error)
	ListPhotoRatings(ctx context.Context, photoID int) ([]*Rating, error)
	// DropAverage forgets the cached average of a photo whose ratings were
	// removed outside the rating service
	DropAverage(ctx context.Context, photoID int)
}

// SearchService combines keyword and tag matches into one result page
type SearchService interface {
	SearchPhotos(ctx context.Context, keyword string, minRating, maxRating *float64, page Pagination) ([]*Photo, error)
}

// PhotoService manages the photo catalog
type PhotoService interface {
	CreatePhoto(ctx context.Context, req *CreatePhotoRequest, data io.Reader) (*Photo, error)
	GetPhoto(ctx context.Context, id int) (*Photo, error)
	ListPhotos(ctx context.Context, page Pagination) ([]*Photo, error)
	ListUserPhotos(ctx context.Context, userID uuid.UUID, page Pagination) ([]*Photo, error)
	UpdateDescription(ctx context.Context, id int, caller *User, description string) (*Photo, error)
	DeletePhoto(ctx context.Context, id int, caller *User) error
	TransformPhoto(ctx context.Context, id int, caller *User, opts TransformOptions) (*Photo, error)
}

// CommentService manages comments on photos
type CommentService interface {
	CreateComment(ctx context.Context, photoID int, userID uuid.UUID, text string) (*Comment, error)
	ListComments(ctx context.Context, photoID int, page Pagination) ([]*Comment, error)
	EditComment(ctx context.Context, id int, caller *User, text string) (*Comment, error)
	DeleteComment(ctx context.Context, id int) error
}

// UserService manages user accounts
type UserService interface {
	CreateUser(ctx context.Context, username, email, name string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetProfile(ctx context.Context, username string) (*Profile, error)
	ListUsers(ctx context.Context, page Pagination) ([]*User, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) (*User, error)
	ChangeRole(ctx context.Context, id uuid.UUID, role Role) (*User, error)
}
