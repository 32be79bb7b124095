package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"imagine/internal/domain/photo"
	"imagine/internal/observability"
	"imagine/internal/services"
)

// maxJSONBodySize caps JSON request bodies
const maxJSONBodySize = 1 << 20

// Services groups the domain services the HTTP layer exposes
type Services struct {
	Photos   photo.PhotoService
	Tags     photo.TagService
	Ratings  photo.RatingService
	Search   photo.SearchService
	Comments photo.CommentService
	Users    photo.UserService
}

type Handler struct {
	photos   photo.PhotoService
	tags     photo.TagService
	ratings  photo.RatingService
	search   photo.SearchService
	comments photo.CommentService
	users    photo.UserService

	checks        map[string]services.HealthCheck
	logger        *observability.Logger
	tracer        trace.Tracer
	httpMetrics   *observability.HTTPMetrics
	maxUploadSize int64
}

// Option customizes a Handler
type Option func(*Handler)

// WithHealthChecks sets the readiness probes
func WithHealthChecks(checks map[string]services.HealthCheck) Option {
	return func(h *Handler) { h.checks = checks }
}

// WithLogger sets the request logger
func WithLogger(logger *observability.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithTelemetry enables tracing and HTTP metrics middleware
func WithTelemetry(tracer trace.Tracer, metrics *observability.HTTPMetrics) Option {
	return func(h *Handler) {
		h.tracer = tracer
		h.httpMetrics = metrics
	}
}

// WithMaxUploadSize bounds multipart photo uploads
func WithMaxUploadSize(n int64) Option {
	return func(h *Handler) { h.maxUploadSize = n }
}

func New(svc Services, opts ...Option) *Handler {
	h := &Handler{
		photos:        svc.Photos,
		tags:          svc.Tags,
		ratings:       svc.Ratings,
		search:        svc.Search,
		comments:      svc.Comments,
		users:         svc.Users,
		logger:        observability.NewNopLogger(),
		tracer:        observability.GetTracer(),
		maxUploadSize: 10 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewWithContainer creates a handler backed by the container's services
func NewWithContainer(c *services.Container, opts ...Option) *Handler {
	base := []Option{
		WithHealthChecks(c.HealthChecks()),
		WithLogger(c.Logger()),
	}
	if c.Config() != nil && c.Config().Storage.MaxUploadSize > 0 {
		base = append(base, WithMaxUploadSize(c.Config().Storage.MaxUploadSize))
	}

	return New(Services{
		Photos:   c.PhotoService(),
		Tags:     c.TagService(),
		Ratings:  c.RatingService(),
		Search:   c.SearchService(),
		Comments: c.CommentService(),
		Users:    c.UserService(),
	}, append(base, opts...)...)
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if h.httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(h.httpMetrics))
	}
	r.Use(observability.TracingMiddleware(h.tracer))

	// Health probes
	r.Get("/healthz", h.healthzHandler)
	r.Get("/readyz", h.readyzHandler)

	r.Route("/api", func(r chi.Router) {
		// Anonymous reads and registration
		r.Post("/users", h.createUserHandler)
		r.Get("/profiles/{username}", h.getProfileHandler)
		r.Get("/users/{id}/photos", h.listUserPhotosHandler)
		r.Get("/photos", h.listPhotosHandler)
		r.Get("/photos/{id}", h.getPhotoHandler)
		r.Get("/photos/{id}/tags", h.listPhotoTagsHandler)
		r.Get("/photos/{id}/rating", h.averageRatingHandler)
		r.Get("/photos/{id}/comments", h.listCommentsHandler)
		r.Get("/tags", h.listTagsHandler)
		r.Get("/search", h.searchHandler)

		// Everything else needs a known, unbanned caller
		r.Group(func(r chi.Router) {
			r.Use(h.identify)

			r.Get("/users/me", h.currentUserHandler)

			r.Post("/photos", h.createPhotoHandler)
			r.Put("/photos/{id}", h.updatePhotoHandler)
			r.Delete("/photos/{id}", h.deletePhotoHandler)
			r.Post("/photos/{id}/transform", h.transformPhotoHandler)

			r.Post("/photos/{id}/tags", h.attachTagHandler)
			r.Delete("/photos/{id}/tags/{name}", h.detachTagHandler)

			r.Post("/photos/{id}/ratings", h.createRatingHandler)
			r.Get("/photos/{id}/ratings/me", h.userRatingHandler)

			r.Post("/photos/{id}/comments", h.createCommentHandler)
			r.Put("/comments/{id}", h.editCommentHandler)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(photo.RoleAdmin, photo.RoleModerator))

				r.Get("/users", h.listUsersHandler)
				r.Get("/photos/{id}/ratings", h.listRatingsHandler)
				r.Delete("/ratings/{id}", h.deleteRatingHandler)
				r.Delete("/comments/{id}", h.deleteCommentHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(photo.RoleAdmin))

				r.Put("/users/{id}/ban", h.banUserHandler(true))
				r.Put("/users/{id}/unban", h.banUserHandler(false))
				r.Put("/users/{id}/role", h.changeRoleHandler)
			})
		})
	})

	return r
}
