package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"imagine/internal/domain/photo"
)

// searchRepository implements photo.SearchRepository
type searchRepository struct {
	db *sql.DB
}

// NewSearchRepository creates a new SearchRepository
func NewSearchRepository(db *sql.DB) photo.SearchRepository {
	return &searchRepository{db: db}
}

// likeEscaper neutralizes LIKE wildcards so the keyword matches literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ByDescription returns photos whose description contains the keyword,
// case-insensitively
func (r *searchRepository) ByDescription(ctx context.Context, q photo.SearchQuery) ([]*photo.Photo, error) {
	pattern := "%" + likeEscaper.Replace(q.Keyword) + "%"
	return r.run(ctx, `FROM photos p WHERE p.description ILIKE $1 ESCAPE '\'`, pattern, q)
}

// ByTagName returns photos carrying a tag named exactly like the keyword
func (r *searchRepository) ByTagName(ctx context.Context, q photo.SearchQuery) ([]*photo.Photo, error) {
	from := `FROM photos p
		INNER JOIN photo_tags pt ON pt.photo_id = p.id
		INNER JOIN tags t ON t.id = pt.tag_id
		WHERE t.name = $1`
	return r.run(ctx, from, q.Keyword, q)
}

// run completes a search statement with the optional average-rating
// filter and the per-set ordering and pagination
func (r *searchRepository) run(ctx context.Context, from string, match string, q photo.SearchQuery) ([]*photo.Photo, error) {
	q.Pagination.Normalize()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + photoColumns + ` `)
	sb.WriteString(from)

	args := []any{match}
	if q.Rating != nil {
		sb.WriteString(`
		AND p.id IN (
			SELECT photo_id FROM ratings
			GROUP BY photo_id
			HAVING AVG(rating) BETWEEN $2 AND $3
		)`)
		args = append(args, q.Rating.Min, q.Rating.Max)
	}

	n := len(args)
	fmt.Fprintf(&sb, ` ORDER BY p.id ASC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, q.Pagination.Limit, q.Pagination.Offset)

	return queryPhotos(ctx, r.db, sb.String(), args...)
}
