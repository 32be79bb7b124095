package handlers

import "net/http"

type commentRequest struct {
	Opinion string `json:"opinion"`
}

func (h *Handler) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.comments.CreateComment(r.Context(), photoID, callerFrom(r.Context()).ID, req.Opinion)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	comments, err := h.comments.ListComments(r.Context(), photoID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *Handler) editCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.comments.EditComment(r.Context(), id, callerFrom(r.Context()), req.Opinion)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.comments.DeleteComment(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
