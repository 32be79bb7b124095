package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"path"
	"slices"
	"strings"

	"imagine/internal/domain/photo"
)

const defaultMaxUpload = 10 << 20

// imageKind describes one accepted upload format
type imageKind struct {
	ext        string   // canonical extension for stored objects
	extensions []string // extensions a client filename may use
	sniffed    string   // what http.DetectContentType reports for it
}

var imageKinds = map[string]imageKind{
	"image/jpeg": {ext: ".jpg", extensions: []string{".jpg", ".jpeg"}, sniffed: "image/jpeg"},
	"image/jpg":  {ext: ".jpg", extensions: []string{".jpg", ".jpeg"}, sniffed: "image/jpeg"},
	"image/png":  {ext: ".png", extensions: []string{".png"}, sniffed: "image/png"},
	"image/gif":  {ext: ".gif", extensions: []string{".gif"}, sniffed: "image/gif"},
	"image/webp": {ext: ".webp", extensions: []string{".webp"}, sniffed: "image/webp"},
}

// UploadPolicy vets photo uploads before they reach the object store
type UploadPolicy struct {
	maxSize   int64
	allowed   []string
	processor *ImageProcessor
}

var _ photo.UploadValidator = (*UploadPolicy)(nil)

// NewUploadPolicy creates a policy. maxSize <= 0 means 10MB and an empty
// allow list accepts every supported image type.
func NewUploadPolicy(maxSize int64, allowedTypes []string, processor *ImageProcessor) *UploadPolicy {
	if maxSize <= 0 {
		maxSize = defaultMaxUpload
	}
	if len(allowedTypes) == 0 {
		allowedTypes = slices.Sorted(maps.Keys(imageKinds))
	}
	if processor == nil {
		processor = NewImageProcessor(0, 0)
	}
	return &UploadPolicy{maxSize: maxSize, allowed: allowedTypes, processor: processor}
}

// ValidateUpload checks the request metadata, buffers at most maxSize bytes
// and confirms they are an image of the declared type. The buffered bytes are
// returned for storage.
func (p *UploadPolicy) ValidateUpload(ctx context.Context, req *photo.CreatePhotoRequest, data io.Reader) ([]byte, error) {
	if data == nil {
		return nil, invalid("file is required")
	}
	if err := checkFilename(req.Filename); err != nil {
		return nil, err
	}

	kind, ok := imageKinds[req.ContentType]
	if !ok || !slices.Contains(p.allowed, req.ContentType) {
		return nil, invalid("content type %q is not allowed", req.ContentType)
	}
	if ext := strings.ToLower(path.Ext(req.Filename)); !slices.Contains(kind.extensions, ext) {
		return nil, invalid("extension %q does not match content type %s", ext, req.ContentType)
	}
	if req.Size > p.maxSize {
		return nil, invalid("file size %d exceeds maximum of %d bytes", req.Size, p.maxSize)
	}

	content, err := io.ReadAll(io.LimitReader(data, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > p.maxSize {
		return nil, invalid("file exceeds maximum of %d bytes", p.maxSize)
	}
	if got := http.DetectContentType(content); got != kind.sniffed {
		return nil, invalid("content looks like %s, not %s", got, req.ContentType)
	}

	if err := p.processor.ValidateImage(ctx, bytes.NewReader(content), req.ContentType); err != nil {
		return nil, err
	}
	return content, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", photo.ErrValidation, fmt.Sprintf(format, args...))
}

// filenameMarkers are rejected anywhere in a filename, case-insensitively
var filenameMarkers = []string{"<script", "javascript:", "vbscript:", "data:", "onload=", "onerror=", "\x00"}

func checkFilename(name string) error {
	switch {
	case name == "":
		return invalid("filename is required")
	case len(name) > 255:
		return invalid("filename is longer than 255 bytes")
	case strings.Contains(name, ".."):
		return invalid("filename may not contain ..")
	case strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`):
		return invalid("filename may not be an absolute path")
	case strings.HasPrefix(path.Base(strings.ReplaceAll(name, `\`, "/")), "."):
		return invalid("hidden files are not accepted")
	}

	lower := strings.ToLower(name)
	for _, m := range filenameMarkers {
		if strings.Contains(lower, m) {
			return invalid("filename contains %q", m)
		}
	}
	return nil
}

// ExtensionFor returns the extension stored objects of contentType get,
// or "" for unsupported types
func ExtensionFor(contentType string) string {
	return imageKinds[contentType].ext
}
