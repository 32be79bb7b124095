package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"imagine/internal/domain/photo"
)

// UserIDHeader carries the caller identity set by the authenticating gateway
const UserIDHeader = "X-User-ID"

type callerKey struct{}

func withCaller(ctx context.Context, u *photo.User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

// callerFrom returns the authenticated caller, or nil outside identify
func callerFrom(ctx context.Context) *photo.User {
	u, _ := ctx.Value(callerKey{}).(*photo.User)
	return u
}

// identify resolves the caller from UserIDHeader. Unknown identities get
// 401 and banned accounts 403.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "missing or invalid " + UserIDHeader})
			return
		}

		u, err := h.users.GetUser(r.Context(), id)
		if err != nil {
			if errors.Is(err, photo.ErrNotFound) {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "unknown user"})
				return
			}
			h.writeError(w, r, err)
			return
		}

		if u.Banned {
			h.logger.Warn(r.Context()).Str("user_id", u.ID.String()).Msg("Rejected banned user")
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "user is banned"})
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), u)))
	})
}

// requireRole only lets callers holding one of roles through
func requireRole(roles ...photo.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := callerFrom(r.Context())
			if caller == nil || !caller.HasRole(roles...) {
				writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
