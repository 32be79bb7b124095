package implementations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
)

func testMetrics(t *testing.T) *observability.DomainMetrics {
	t.Helper()
	m, err := observability.NewDomainMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return m
}

// fakeStore is an in-memory backing store shared by the fake repositories
type fakeStore struct {
	mu        sync.Mutex
	nextID    int
	photos    map[int]*photo.Photo
	tags      map[string]*photo.Tag
	photoTags map[int][]string
	ratings   map[int]*photo.Rating
	comments  map[int]*photo.Comment
	users     map[uuid.UUID]*photo.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		photos:    map[int]*photo.Photo{},
		tags:      map[string]*photo.Tag{},
		photoTags: map[int][]string{},
		ratings:   map[int]*photo.Rating{},
		comments:  map[int]*photo.Comment{},
		users:     map[uuid.UUID]*photo.User{},
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) addPhoto(owner uuid.UUID, publicID, description string) *photo.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &photo.Photo{ID: s.id(), PublicID: publicID, Path: "http://cdn/" + publicID, Description: description, UserID: owner}
	s.photos[p.ID] = p
	return p
}

func (s *fakeStore) tagLocked(name string) *photo.Tag {
	t, ok := s.tags[name]
	if !ok {
		t = &photo.Tag{ID: s.id(), Name: name, CreatedAt: time.Now()}
		s.tags[name] = t
	}
	return t
}

func (s *fakeStore) tagsOfLocked(photoID int) []photo.Tag {
	names := append([]string(nil), s.photoTags[photoID]...)
	sort.Strings(names)
	out := make([]photo.Tag, 0, len(names))
	for _, n := range names {
		out = append(out, *s.tags[n])
	}
	return out
}

func copyPhoto(p *photo.Photo) *photo.Photo {
	c := *p
	return &c
}

func page[T any](items []T, pg photo.Pagination) []T {
	if pg.Offset >= len(items) {
		return []T{}
	}
	end := pg.Offset + pg.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[pg.Offset:end]
}

// fakePhotoRepo implements photo.PhotoRepository
type fakePhotoRepo struct {
	store     *fakeStore
	createErr error
	lastPage  photo.Pagination
}

func (r *fakePhotoRepo) Create(_ context.Context, p *photo.Photo, tagNames []string) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p.ID = r.store.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.store.photos[p.ID] = copyPhoto(p)
	for _, n := range tagNames {
		r.store.tagLocked(n)
		r.store.photoTags[p.ID] = append(r.store.photoTags[p.ID], n)
	}
	p.Tags = r.store.tagsOfLocked(p.ID)
	return nil
}

func (r *fakePhotoRepo) GetByID(_ context.Context, id int) (*photo.Photo, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.photos[id]
	if !ok {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, id)
	}
	c := copyPhoto(p)
	c.Tags = r.store.tagsOfLocked(id)
	return c, nil
}

func (r *fakePhotoRepo) list(filter func(*photo.Photo) bool, pg photo.Pagination) []*photo.Photo {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.lastPage = pg
	var out []*photo.Photo
	for _, p := range r.store.photos {
		if filter(p) {
			out = append(out, copyPhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, pg)
}

func (r *fakePhotoRepo) List(_ context.Context, pg photo.Pagination) ([]*photo.Photo, error) {
	return r.list(func(*photo.Photo) bool { return true }, pg), nil
}

func (r *fakePhotoRepo) ListByUser(_ context.Context, userID uuid.UUID, pg photo.Pagination) ([]*photo.Photo, error) {
	return r.list(func(p *photo.Photo) bool { return p.UserID == userID }, pg), nil
}

func (r *fakePhotoRepo) UpdateDescription(ctx context.Context, id int, description string) (*photo.Photo, error) {
	r.store.mu.Lock()
	p, ok := r.store.photos[id]
	if ok {
		p.Description = description
	}
	r.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, id)
	}
	return r.GetByID(ctx, id)
}

func (r *fakePhotoRepo) UpdateTransformPath(_ context.Context, id int, path string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.photos[id]
	if !ok {
		return fmt.Errorf("%w: photo %d", photo.ErrNotFound, id)
	}
	p.PathTransform = &path
	return nil
}

func (r *fakePhotoRepo) Delete(_ context.Context, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.photos[id]; !ok {
		return fmt.Errorf("%w: photo %d", photo.ErrNotFound, id)
	}
	delete(r.store.photos, id)
	delete(r.store.photoTags, id)
	for rid, rt := range r.store.ratings {
		if rt.PhotoID == id {
			delete(r.store.ratings, rid)
		}
	}
	return nil
}

func (r *fakePhotoRepo) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, p := range r.store.photos {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// fakeTagRepo implements photo.TagRepository
type fakeTagRepo struct {
	store *fakeStore
}

func (r *fakeTagRepo) GetOrCreate(_ context.Context, name string) (*photo.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t := *r.store.tagLocked(name)
	return &t, nil
}

func (r *fakeTagRepo) GetByName(_ context.Context, name string) (*photo.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tags[name]
	if !ok {
		return nil, fmt.Errorf("%w: tag %q", photo.ErrNotFound, name)
	}
	c := *t
	return &c, nil
}

func (r *fakeTagRepo) List(_ context.Context, pg photo.Pagination) ([]*photo.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*photo.Tag, 0, len(r.store.tags))
	for _, t := range r.store.tags {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, pg), nil
}

func (r *fakeTagRepo) ListForPhoto(_ context.Context, photoID int) ([]photo.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.photos[photoID]; !ok {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
	}
	return r.store.tagsOfLocked(photoID), nil
}

func (r *fakeTagRepo) ListForPhotos(_ context.Context, photoIDs []int) (map[int][]photo.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make(map[int][]photo.Tag, len(photoIDs))
	for _, id := range photoIDs {
		if tags := r.store.tagsOfLocked(id); len(tags) > 0 {
			out[id] = tags
		}
	}
	return out, nil
}

func (r *fakeTagRepo) Attach(_ context.Context, photoID int, tagName string) (*photo.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.photos[photoID]; !ok {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
	}
	names := r.store.photoTags[photoID]
	if len(names) >= photo.MaxTagsPerPhoto {
		return nil, fmt.Errorf("%w: photo %d already has %d tags", photo.ErrLimitExceeded, photoID, len(names))
	}
	for _, n := range names {
		if n == tagName {
			return nil, fmt.Errorf("%w: tag %q already attached", photo.ErrConflict, tagName)
		}
	}
	t := *r.store.tagLocked(tagName)
	r.store.photoTags[photoID] = append(names, tagName)
	return &t, nil
}

func (r *fakeTagRepo) Detach(_ context.Context, photoID int, tagName string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.photos[photoID]; !ok {
		return fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
	}
	if _, ok := r.store.tags[tagName]; !ok {
		return fmt.Errorf("%w: tag %q", photo.ErrNotFound, tagName)
	}
	names := r.store.photoTags[photoID]
	for i, n := range names {
		if n == tagName {
			r.store.photoTags[photoID] = append(names[:i:i], names[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: tag %q is not attached", photo.ErrInvalidState, tagName)
}

// fakeRatingRepo implements photo.RatingRepository
type fakeRatingRepo struct {
	store        *fakeStore
	averageCalls int
	// afterAverage runs once Average has read the store
	afterAverage func()
}

func (r *fakeRatingRepo) Create(_ context.Context, photoID int, userID uuid.UUID, value int) (*photo.Rating, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.photos[photoID]; !ok {
		return nil, fmt.Errorf("%w: photo %d", photo.ErrNotFound, photoID)
	}
	for _, rt := range r.store.ratings {
		if rt.PhotoID == photoID && rt.UserID == userID {
			return nil, fmt.Errorf("%w: photo %d", photo.ErrAlreadyRated, photoID)
		}
	}
	rt := &photo.Rating{ID: r.store.id(), Rating: value, PhotoID: photoID, UserID: userID}
	r.store.ratings[rt.ID] = rt
	c := *rt
	return &c, nil
}

func (r *fakeRatingRepo) Average(_ context.Context, photoID int) (float64, bool, error) {
	r.store.mu.Lock()
	r.averageCalls++
	sum, n := 0, 0
	for _, rt := range r.store.ratings {
		if rt.PhotoID == photoID {
			sum += rt.Rating
			n++
		}
	}
	r.store.mu.Unlock()

	if r.afterAverage != nil {
		r.afterAverage()
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(n), true, nil
}

func (r *fakeRatingRepo) GetForUser(_ context.Context, photoID int, userID uuid.UUID) (*photo.Rating, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rt := range r.store.ratings {
		if rt.PhotoID == photoID && rt.UserID == userID {
			c := *rt
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: rating", photo.ErrNotFound)
}

func (r *fakeRatingRepo) ListForPhoto(_ context.Context, photoID int) ([]*photo.Rating, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*photo.Rating{}
	for _, rt := range r.store.ratings {
		if rt.PhotoID == photoID {
			c := *rt
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRatingRepo) Delete(_ context.Context, id int) (*photo.Rating, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rt, ok := r.store.ratings[id]
	if !ok {
		return nil, nil
	}
	delete(r.store.ratings, id)
	return rt, nil
}

// fakeSearchRepo returns canned halves and records the queries it received
type fakeSearchRepo struct {
	mu            sync.Mutex
	byDescription []*photo.Photo
	byTag         []*photo.Photo
	err           error
	queries       []photo.SearchQuery
}

func (r *fakeSearchRepo) record(q photo.SearchQuery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *fakeSearchRepo) ByDescription(_ context.Context, q photo.SearchQuery) ([]*photo.Photo, error) {
	r.record(q)
	return r.byDescription, r.err
}

func (r *fakeSearchRepo) ByTagName(_ context.Context, q photo.SearchQuery) ([]*photo.Photo, error) {
	r.record(q)
	return r.byTag, nil
}

// fakeCommentRepo implements photo.CommentRepository
type fakeCommentRepo struct {
	store *fakeStore
}

func (r *fakeCommentRepo) Create(_ context.Context, c *photo.Comment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.photos[c.PhotoID]; !ok {
		return fmt.Errorf("%w: photo %d", photo.ErrNotFound, c.PhotoID)
	}
	c.ID = r.store.id()
	stored := *c
	r.store.comments[c.ID] = &stored
	return nil
}

func (r *fakeCommentRepo) GetByID(_ context.Context, id int) (*photo.Comment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.comments[id]
	if !ok {
		return nil, fmt.Errorf("%w: comment %d", photo.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCommentRepo) ListForPhoto(_ context.Context, photoID int, pg photo.Pagination) ([]*photo.Comment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*photo.Comment{}
	for _, c := range r.store.comments {
		if c.PhotoID == photoID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, pg), nil
}

func (r *fakeCommentRepo) Update(_ context.Context, id int, opinion string) (*photo.Comment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.comments[id]
	if !ok {
		return nil, fmt.Errorf("%w: comment %d", photo.ErrNotFound, id)
	}
	c.Opinion = opinion
	cp := *c
	return &cp, nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.comments[id]; !ok {
		return fmt.Errorf("%w: comment %d", photo.ErrNotFound, id)
	}
	delete(r.store.comments, id)
	return nil
}

// fakeUserRepo implements photo.UserRepository
type fakeUserRepo struct {
	store    *fakeStore
	getCalls int
	// afterGet runs once GetByID has read the store
	afterGet func()
}

func (r *fakeUserRepo) Create(_ context.Context, u *photo.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("%w: username or email already taken", photo.ErrConflict)
		}
	}
	u.ID = uuid.New()
	u.Role = photo.RoleUser
	if len(r.store.users) == 0 {
		u.Role = photo.RoleAdmin
	}
	u.CreatedAt = time.Now()
	stored := *u
	r.store.users[u.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*photo.User, error) {
	r.store.mu.Lock()
	r.getCalls++
	u, ok := r.store.users[id]
	var c photo.User
	if ok {
		c = *u
	}
	r.store.mu.Unlock()

	if r.afterGet != nil {
		r.afterGet()
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", photo.ErrNotFound, id)
	}
	return &c, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*photo.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: user %q", photo.ErrNotFound, username)
}

func (r *fakeUserRepo) List(_ context.Context, pg photo.Pagination) ([]*photo.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := []*photo.User{}
	for _, u := range r.store.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return page(out, pg), nil
}

func (r *fakeUserRepo) update(id uuid.UUID, fn func(*photo.User)) (*photo.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", photo.ErrNotFound, id)
	}
	fn(u)
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) SetBanned(_ context.Context, id uuid.UUID, banned bool) (*photo.User, error) {
	return r.update(id, func(u *photo.User) { u.Banned = banned })
}

func (r *fakeUserRepo) SetRole(_ context.Context, id uuid.UUID, role photo.Role) (*photo.User, error) {
	return r.update(id, func(u *photo.User) { u.Role = role })
}

// fakeCache implements photo.UserCache and photo.RatingCache with the same
// version rule as the Redis client
type fakeCache struct {
	mu          sync.Mutex
	users       map[uuid.UUID]photo.User
	userVers    map[uuid.UUID]int64
	averages    map[int]float64
	averageVers map[int]int64
	failSet     bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		users:       map[uuid.UUID]photo.User{},
		userVers:    map[uuid.UUID]int64{},
		averages:    map[int]float64{},
		averageVers: map[int]int64{},
	}
}

func (c *fakeCache) GetUser(_ context.Context, id uuid.UUID) (*photo.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	if !ok {
		return nil, photo.ErrCacheMiss
	}
	return &u, nil
}

func (c *fakeCache) UserVersion(_ context.Context, id uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userVers[id], nil
}

func (c *fakeCache) FillUser(_ context.Context, u *photo.User, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return fmt.Errorf("cache down")
	}
	if c.userVers[u.ID] == version {
		c.users[u.ID] = *u
	}
	return nil
}

func (c *fakeCache) EvictUser(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userVers[id]++
	delete(c.users, id)
	return nil
}

func (c *fakeCache) GetAverage(_ context.Context, photoID int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	avg, ok := c.averages[photoID]
	if !ok {
		return 0, photo.ErrCacheMiss
	}
	return avg, nil
}

func (c *fakeCache) AverageVersion(_ context.Context, photoID int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.averageVers[photoID], nil
}

func (c *fakeCache) FillAverage(_ context.Context, photoID int, avg float64, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return fmt.Errorf("cache down")
	}
	if c.averageVers[photoID] == version {
		c.averages[photoID] = avg
	}
	return nil
}

func (c *fakeCache) InvalidateAverage(_ context.Context, photoID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.averageVers[photoID]++
	delete(c.averages, photoID)
	return nil
}

func (c *fakeCache) Health(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return fmt.Errorf("cache down")
	}
	return nil
}

// fakeHost implements photo.ImageHost in memory
type fakeHost struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{objects: map[string][]byte{}}
}

func (h *fakeHost) Upload(_ context.Context, publicID string, data io.Reader, _ int64, _ string) (string, error) {
	if h.uploadErr != nil {
		return "", h.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objects[publicID] = b
	return "http://cdn/" + publicID, nil
}

func (h *fakeHost) Download(_ context.Context, publicID string) (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.objects[publicID]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", photo.ErrNotFound, publicID)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (h *fakeHost) Delete(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.objects, publicID)
	h.deleted = append(h.deleted, publicID)
	return nil
}

// fakeTransformer echoes its input as a jpeg of fixed content
type fakeTransformer struct {
	lastOpts photo.TransformOptions
}

func (f *fakeTransformer) Transform(_ context.Context, data io.Reader, opts photo.TransformOptions) (*photo.TransformedImage, error) {
	if _, err := io.ReadAll(data); err != nil {
		return nil, err
	}
	f.lastOpts = opts
	out := []byte("transformed")
	return &photo.TransformedImage{
		Data:        bytes.NewReader(out),
		Size:        int64(len(out)),
		ContentType: "image/jpeg",
		Extension:   ".jpg",
	}, nil
}

// fakeUploads accepts any non-empty upload
type fakeUploads struct{}

func (fakeUploads) ValidateUpload(_ context.Context, _ *photo.CreatePhotoRequest, data io.Reader) ([]byte, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty file", photo.ErrValidation)
	}
	return b, nil
}
