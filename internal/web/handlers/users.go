package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagine/internal/domain/photo"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

type changeRoleRequest struct {
	Role photo.Role `json:"role"`
}

func (h *Handler) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.users.CreateUser(r.Context(), req.Username, req.Email, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) currentUserHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, callerFrom(r.Context()))
}

func (h *Handler) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	users, err := h.users.ListUsers(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) banUserHandler(banned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		caller := callerFrom(r.Context())
		if caller.ID == id {
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: photo.Kind(photo.ErrInvalidState), Message: "cannot change your own ban state"})
			return
		}

		u, err := h.users.SetBanned(r.Context(), id, banned)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func (h *Handler) changeRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.users.ChangeRole(r.Context(), id, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
