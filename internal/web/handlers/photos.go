package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imagine/internal/domain/photo"
)

// uploadMemory is how much of a multipart body stays in RAM before parts
// spill to temporary files
const uploadMemory = 1 << 20

type updatePhotoRequest struct {
	Description string `json:"description"`
}

// createPhotoHandler accepts multipart/form-data with a "file" part and
// optional "description" and comma-separated "tags" fields
func (h *Handler) createPhotoHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePhoto")
	defer span.End()

	fail := func(err error, status string) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		h.writeError(w, r, err)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+uploadMemory)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		fail(badRequest("malformed upload: %v", err), "bad multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(badRequest("file is required"), "missing file part")
		return
	}
	defer file.Close()

	contentType, err := partContentType(file, header)
	if err != nil {
		fail(err, "unreadable file part")
		return
	}

	req := &photo.CreatePhotoRequest{
		Owner:       callerFrom(ctx).ID,
		Description: r.FormValue("description"),
		Tags:        splitTags(r.FormValue("tags")),
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	}
	span.SetAttributes(
		attribute.String("upload.filename", header.Filename),
		attribute.String("upload.content_type", contentType),
		attribute.Int64("upload.size", header.Size),
		attribute.Int("upload.tags", len(req.Tags)),
	)

	p, err := h.photos.CreatePhoto(ctx, req, file)
	if err != nil {
		fail(err, "create photo")
		return
	}
	span.SetAttributes(attribute.Int("photo.id", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPhotoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.photos.GetPhoto(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listPhotosHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	photos, err := h.photos.ListPhotos(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

func (h *Handler) listUserPhotosHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := pagination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	photos, err := h.photos.ListUserPhotos(r.Context(), userID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

func (h *Handler) updatePhotoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updatePhotoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.photos.UpdateDescription(r.Context(), id, callerFrom(r.Context()), req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.photos.DeletePhoto(r.Context(), id, callerFrom(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transformPhotoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var opts photo.TransformOptions
	if err := decodeJSON(w, r, &opts); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "TransformPhoto",
		trace.WithAttributes(
			attribute.Int("photo.id", id),
			attribute.Int("transform.width", opts.Width),
			attribute.Int("transform.height", opts.Height),
			attribute.String("transform.mode", string(opts.Mode)),
		),
	)
	defer span.End()

	p, err := h.photos.TransformPhoto(ctx, id, callerFrom(ctx), opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// partContentType trusts the part's declared media type unless it is missing
// or generic, in which case the leading bytes are sniffed
func partContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	if declared := header.Header.Get("Content-Type"); declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
			return mediaType, nil
		}
	}

	head := make([]byte, 512)
	n, err := file.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}

// splitTags returns the non-blank comma-separated names in s. Duplicates
// are left for the photo service to drop.
func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' })
	tags := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
