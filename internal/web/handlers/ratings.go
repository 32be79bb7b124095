package handlers

import (
	"net/http"

	"imagine/internal/domain/photo"
)

type createRatingRequest struct {
	Rating int `json:"rating"`
}

// AverageRatingResponse is the body of a photo's average rating
type AverageRatingResponse struct {
	PhotoID int     `json:"photo_id"`
	Average float64 `json:"average_rating"`
}

func (h *Handler) createRatingHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req createRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rating, err := h.ratings.CreateRating(r.Context(), photoID, callerFrom(r.Context()).ID, req.Rating)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (h *Handler) averageRatingHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	avg, ok, err := h.ratings.AverageRating(r.Context(), photoID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "photo has no ratings"})
		return
	}
	writeJSON(w, http.StatusOK, AverageRatingResponse{PhotoID: photoID, Average: avg})
}

func (h *Handler) userRatingHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rating, err := h.ratings.GetUserRating(r.Context(), photoID, callerFrom(r.Context()).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (h *Handler) listRatingsHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ratings, err := h.ratings.ListPhotoRatings(r.Context(), photoID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

func (h *Handler) deleteRatingHandler(w http.ResponseWriter, r *http.Request) {
	ratingID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rating, err := h.ratings.DeleteRating(r.Context(), ratingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rating == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: photo.Kind(photo.ErrNotFound), Message: "rating not found"})
		return
	}
	writeJSON(w, http.StatusOK, rating)
}
