package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Import for webp decoding support

	"imagine/internal/domain/photo"
)

const (
	defaultMaxSide = 4096
	defaultQuality = 85
)

// ImageProcessor decodes, validates and transforms photos
type ImageProcessor struct {
	maxSide int
	quality int
}

var _ photo.ImageTransformer = (*ImageProcessor)(nil)

// NewImageProcessor creates a new image processor
func NewImageProcessor(maxSide, quality int) *ImageProcessor {
	if maxSide <= 0 {
		maxSide = defaultMaxSide
	}
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	return &ImageProcessor{
		maxSide: maxSide,
		quality: quality,
	}
}

// MaxSide returns the largest width or height a transformation may request
func (p *ImageProcessor) MaxSide() int {
	return p.maxSide
}

// Transform resizes an encoded image. Fit scales it into the box keeping the
// aspect ratio; fill crops the centre to the box aspect and scales to the
// exact box size.
func (p *ImageProcessor) Transform(ctx context.Context, data io.Reader, opts photo.TransformOptions) (*photo.TransformedImage, error) {
	if data == nil {
		return nil, errors.New("data cannot be nil")
	}

	if err := opts.Validate(p.maxSide); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %w", photo.ErrValidation, err)
	}

	srcRect := src.Bounds()
	var dst *image.RGBA

	switch opts.Mode {
	case photo.TransformFill:
		srcRect = fillCrop(srcRect, opts.Width, opts.Height)
		dst = image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	default:
		w, h := fitSize(srcRect.Dx(), srcRect.Dy(), opts.Width, opts.Height)
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	// Use high-quality scaling
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, draw.Src, nil)

	var buf bytes.Buffer
	contentType, ext, err := p.encode(&buf, dst, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transformed image: %w", err)
	}

	return &photo.TransformedImage{
		Data:        bytes.NewReader(buf.Bytes()),
		Size:        int64(buf.Len()),
		ContentType: contentType,
		Extension:   ext,
	}, nil
}

// encode writes img in format, falling back to JPEG for formats without an
// encoder (webp)
func (p *ImageProcessor) encode(w io.Writer, img image.Image, format string) (string, string, error) {
	switch format {
	case "png":
		return "image/png", ".png", png.Encode(w, img)
	case "gif":
		return "image/gif", ".gif", gif.Encode(w, img, nil)
	default:
		return "image/jpeg", ".jpg", jpeg.Encode(w, img, &jpeg.Options{Quality: p.quality})
	}
}

// fitSize returns the largest size with the source aspect ratio that fits
// inside boxW x boxH
func fitSize(srcW, srcH, boxW, boxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return boxW, boxH
	}

	scaleX := float64(boxW) / float64(srcW)
	scaleY := float64(boxH) / float64(srcH)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	w := max(1, int(float64(srcW)*scale+0.5))
	h := max(1, int(float64(srcH)*scale+0.5))
	return min(w, boxW), min(h, boxH)
}

// fillCrop returns the centred sub-rectangle of src with the aspect ratio
// of boxW x boxH
func fillCrop(src image.Rectangle, boxW, boxH int) image.Rectangle {
	srcW, srcH := src.Dx(), src.Dy()

	cropW, cropH := srcW, srcH
	if srcW*boxH > srcH*boxW {
		cropW = max(1, srcH*boxW/boxH)
	} else {
		cropH = max(1, srcW*boxH/boxW)
	}

	x0 := src.Min.X + (srcW-cropW)/2
	y0 := src.Min.Y + (srcH-cropH)/2
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}

// contentTypeFormats maps accepted upload content types to decoder names
var contentTypeFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ValidateImage checks that data decodes as the declared content type
func (p *ImageProcessor) ValidateImage(ctx context.Context, data io.Reader, contentType string) error {
	if data == nil {
		return errors.New("data cannot be nil")
	}

	expected, ok := contentTypeFormats[contentType]
	if !ok {
		return fmt.Errorf("%w: unsupported content type %q", photo.ErrValidation, contentType)
	}

	config, format, err := image.DecodeConfig(data)
	if err != nil {
		return fmt.Errorf("%w: invalid image data: %w", photo.ErrValidation, err)
	}

	if config.Width <= 0 || config.Height <= 0 {
		return fmt.Errorf("%w: invalid image dimensions %dx%d", photo.ErrValidation, config.Width, config.Height)
	}

	if format != expected {
		return fmt.Errorf("%w: image format %s doesn't match content type %s", photo.ErrValidation, format, contentType)
	}

	return nil
}
