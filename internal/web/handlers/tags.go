package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

type attachTagRequest struct {
	Name string `json:"name"`
}

func (h *Handler) listTagsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tags, err := h.tags.ListTags(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) listPhotoTagsHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tags, err := h.tags.ListPhotoTags(r.Context(), photoID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) attachTagHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req attachTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tag, err := h.tags.AttachTag(r.Context(), photoID, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *Handler) detachTagHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// chi routes on RawPath when the URL has one, leaving params escaped
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if name, err = url.PathUnescape(name); err != nil {
			h.writeError(w, r, badRequest("invalid tag name"))
			return
		}
	}

	if err := h.tags.DetachTag(r.Context(), photoID, name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
