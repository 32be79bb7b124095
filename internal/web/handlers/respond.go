package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"imagine/internal/domain/photo"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a domain error kind to an HTTP status
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "already_rated", "invalid_state":
		return http.StatusConflict
	case "limit_exceeded":
		return http.StatusUnprocessableEntity
	case "validation_error":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Best effort response
}

// writeError maps err onto the error taxonomy. Internal failures are logged
// and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := photo.Kind(err)
	status := statusFor(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context()).
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		message = "internal server error"
	}

	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{photo.ErrValidation}, args...)...)
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (photo.Pagination, error) {
	var page photo.Pagination
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return page, badRequest("invalid limit %q", raw)
		}
		page.Limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, badRequest("invalid offset %q", raw)
		}
		page.Offset = v
	}

	return page, nil
}

// optionalFloat parses an optional query parameter
func optionalFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	return &v, nil
}
