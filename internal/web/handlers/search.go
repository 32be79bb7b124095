package handlers

import "net/http"

// searchHandler serves GET /api/search?keyword=&rating_min=&rating_max=&limit=&offset=
func (h *Handler) searchHandler(w http.ResponseWriter, r *http.Request) {
	minRating, err := optionalFloat(r, "rating_min")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	maxRating, err := optionalFloat(r, "rating_max")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	photos, err := h.search.SearchPhotos(r.Context(), r.URL.Query().Get("keyword"), minRating, maxRating, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}
