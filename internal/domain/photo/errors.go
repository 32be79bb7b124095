package photo

import "errors"

// Error taxonomy shared by every service. Concrete errors wrap one of these
// with fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyRated  = errors.New("already rated")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrValidation    = errors.New("validation failed")
	ErrInvalidState  = errors.New("invalid state")
	ErrForbidden     = errors.New("forbidden")

	// ErrCacheMiss is returned by cache ports when a key is absent.
	ErrCacheMiss = errors.New("cache miss")
)

// Kind returns the short machine-readable name of the taxonomy entry err
// belongs to, or "internal" when it matches none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyRated):
		return "already_rated"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
