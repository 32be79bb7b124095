package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const domainInstrumentationName = "imagine/photos"

// DomainMetrics holds counters for tagging, rating and search activity
type DomainMetrics struct {
	tagsAttached     metric.Int64Counter
	tagsDetached     metric.Int64Counter
	attachRejections metric.Int64Counter
	ratingsCreated   metric.Int64Counter
	ratingsRejected  metric.Int64Counter
	searchResults    metric.Int64Histogram
	cacheLookups     metric.Int64Counter
}

// NewDomainMetrics creates and registers domain metrics on meter
func NewDomainMetrics(meter metric.Meter) (*DomainMetrics, error) {
	tagsAttached, err := meter.Int64Counter(
		"photos.tags.attached",
		metric.WithDescription("Tags attached to photos"),
		metric.WithUnit("{tag}"),
	)
	if err != nil {
		return nil, err
	}

	tagsDetached, err := meter.Int64Counter(
		"photos.tags.detached",
		metric.WithDescription("Tags detached from photos"),
		metric.WithUnit("{tag}"),
	)
	if err != nil {
		return nil, err
	}

	attachRejections, err := meter.Int64Counter(
		"photos.tags.attach_rejected",
		metric.WithDescription("Tag attach attempts rejected, by reason"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	ratingsCreated, err := meter.Int64Counter(
		"photos.ratings.created",
		metric.WithDescription("Ratings recorded"),
		metric.WithUnit("{rating}"),
	)
	if err != nil {
		return nil, err
	}

	ratingsRejected, err := meter.Int64Counter(
		"photos.ratings.rejected",
		metric.WithDescription("Rating attempts rejected, by reason"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	searchResults, err := meter.Int64Histogram(
		"photos.search.results",
		metric.WithDescription("Number of photos returned per search"),
		metric.WithUnit("{photo}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"photos.cache.lookups",
		metric.WithDescription("Cache lookups, by cache and outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &DomainMetrics{
		tagsAttached:     tagsAttached,
		tagsDetached:     tagsDetached,
		attachRejections: attachRejections,
		ratingsCreated:   ratingsCreated,
		ratingsRejected:  ratingsRejected,
		searchResults:    searchResults,
		cacheLookups:     cacheLookups,
	}, nil
}

// TagAttached records a successful attach
func (m *DomainMetrics) TagAttached(ctx context.Context) {
	m.tagsAttached.Add(ctx, 1)
}

// TagDetached records a successful detach
func (m *DomainMetrics) TagDetached(ctx context.Context) {
	m.tagsDetached.Add(ctx, 1)
}

// AttachRejected records a refused attach; reason is an error kind
func (m *DomainMetrics) AttachRejected(ctx context.Context, reason string) {
	m.attachRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RatingCreated records a new rating with its value
func (m *DomainMetrics) RatingCreated(ctx context.Context, value int) {
	m.ratingsCreated.Add(ctx, 1, metric.WithAttributes(attribute.Int("rating.value", value)))
}

// RatingRejected records a refused rating; reason is an error kind
func (m *DomainMetrics) RatingRejected(ctx context.Context, reason string) {
	m.ratingsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SearchCompleted records the size of a search result page
func (m *DomainMetrics) SearchCompleted(ctx context.Context, filtered bool, results int) {
	m.searchResults.Record(ctx, int64(results), metric.WithAttributes(attribute.Bool("search.rating_filter", filtered)))
}

// CacheLookup records a cache hit or miss
func (m *DomainMetrics) CacheLookup(ctx context.Context, cache string, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.Bool("hit", hit),
	))
}

// GetDomainMeter returns the meter used for domain metrics
func GetDomainMeter() metric.Meter {
	return otel.Meter(domainInstrumentationName)
}
