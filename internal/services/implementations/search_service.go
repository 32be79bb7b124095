package implementations

import (
	"context"

	"golang.org/x/sync/errgroup"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
)

// SearchServiceImpl implements the photo.SearchService interface
type SearchServiceImpl struct {
	searchRepo  photo.SearchRepository
	tagRepo     photo.TagRepository
	metrics     *observability.DomainMetrics
	logger      *observability.Logger
	maxPageSize int
}

// NewSearchService creates a new search service implementation. Page sizes
// above maxPageSize are clamped.
func NewSearchService(
	searchRepo photo.SearchRepository,
	tagRepo photo.TagRepository,
	metrics *observability.DomainMetrics,
	logger *observability.Logger,
	maxPageSize int,
) photo.SearchService {
	return &SearchServiceImpl{
		searchRepo:  searchRepo,
		tagRepo:     tagRepo,
		metrics:     metrics,
		logger:      logger,
		maxPageSize: maxPageSize,
	}
}

// SearchPhotos returns photos whose description contains keyword followed
// by photos tagged exactly keyword, each half paged on its own. When a
// rating bound is given both halves only keep photos whose average rating
// lies in the range.
func (s *SearchServiceImpl) SearchPhotos(ctx context.Context, keyword string, minRating, maxRating *float64, page photo.Pagination) ([]*photo.Photo, error) {
	if err := photo.ValidateKeyword(keyword); err != nil {
		return nil, err
	}

	ratingRange, err := photo.NewRatingRange(minRating, maxRating)
	if err != nil {
		return nil, err
	}

	query := photo.SearchQuery{
		Keyword:    keyword,
		Rating:     ratingRange,
		Pagination: clampPage(page, s.maxPageSize),
	}

	var byDescription, byTag []*photo.Photo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byDescription, err = s.searchRepo.ByDescription(gctx, query)
		return err
	})
	g.Go(func() error {
		var err error
		byTag, err = s.searchRepo.ByTagName(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := mergeResults(byDescription, byTag)
	if err := loadTags(ctx, s.tagRepo, results); err != nil {
		return nil, err
	}

	s.metrics.SearchCompleted(ctx, ratingRange != nil, len(results))
	s.logger.Debug(ctx).
		Str("keyword", keyword).
		Int("description_matches", len(byDescription)).
		Int("tag_matches", len(byTag)).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

// loadTags fills the tags of every photo with a single query
func loadTags(ctx context.Context, tagRepo photo.TagRepository, photos []*photo.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	ids := make([]int, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}

	tagsByPhoto, err := tagRepo.ListForPhotos(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range photos {
		p.Tags = tagsByPhoto[p.ID]
		if p.Tags == nil {
			p.Tags = []photo.Tag{}
		}
	}
	return nil
}

// mergeResults returns first followed by the photos of second not already
// in first. The result is never nil.
func mergeResults(first, second []*photo.Photo) []*photo.Photo {
	merged := make([]*photo.Photo, 0, len(first)+len(second))
	seen := make(map[int]struct{}, len(first))

	for _, p := range first {
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range second {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
	}

	return merged
}

// clampPage normalizes page and caps its size at maxSize when positive
func clampPage(page photo.Pagination, maxSize int) photo.Pagination {
	page.Normalize()
	if maxSize > 0 && page.Limit > maxSize {
		page.Limit = maxSize
	}
	return page
}
