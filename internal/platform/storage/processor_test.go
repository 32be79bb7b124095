package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagine/internal/domain/photo"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func createTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func decodedSize(t *testing.T, r io.Reader) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(r)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestNewImageProcessor(t *testing.T) {
	tests := []struct {
		name        string
		maxSide     int
		quality     int
		wantMaxSide int
		wantQuality int
	}{
		{name: "valid parameters", maxSide: 2048, quality: 90, wantMaxSide: 2048, wantQuality: 90},
		{name: "zero side defaults", maxSide: 0, quality: 90, wantMaxSide: 4096, wantQuality: 90},
		{name: "zero quality defaults to 85", maxSide: 2048, quality: 0, wantMaxSide: 2048, wantQuality: 85},
		{name: "quality over 100 defaults to 85", maxSide: 2048, quality: 150, wantMaxSide: 2048, wantQuality: 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewImageProcessor(tt.maxSide, tt.quality)

			assert.Equal(t, tt.wantMaxSide, processor.MaxSide())
			assert.Equal(t, tt.wantQuality, processor.quality)
		})
	}
}

func TestImageProcessor_Transform(t *testing.T) {
	processor := NewImageProcessor(1000, 85)

	tests := []struct {
		name       string
		src        []byte
		opts       photo.TransformOptions
		wantWidth  int
		wantHeight int
		wantType   string
		wantExt    string
	}{
		{
			name:       "fit landscape into square keeps aspect",
			src:        createTestPNG(t, 400, 200),
			opts:       photo.TransformOptions{Width: 100, Height: 100, Mode: photo.TransformFit},
			wantWidth:  100,
			wantHeight: 50,
			wantType:   "image/png",
			wantExt:    ".png",
		},
		{
			name:       "empty mode defaults to fit",
			src:        createTestPNG(t, 200, 400),
			opts:       photo.TransformOptions{Width: 100, Height: 100},
			wantWidth:  50,
			wantHeight: 100,
			wantType:   "image/png",
			wantExt:    ".png",
		},
		{
			name:       "fill produces exact box",
			src:        createTestPNG(t, 400, 200),
			opts:       photo.TransformOptions{Width: 100, Height: 100, Mode: photo.TransformFill},
			wantWidth:  100,
			wantHeight: 100,
			wantType:   "image/png",
			wantExt:    ".png",
		},
		{
			name:       "jpeg stays jpeg",
			src:        createTestJPEG(t, 300, 300),
			opts:       photo.TransformOptions{Width: 60, Height: 30, Mode: photo.TransformFill},
			wantWidth:  60,
			wantHeight: 30,
			wantType:   "image/jpeg",
			wantExt:    ".jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := processor.Transform(context.Background(), bytes.NewReader(tt.src), tt.opts)
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, out.ContentType)
			assert.Equal(t, tt.wantExt, out.Extension)
			assert.Positive(t, out.Size)

			w, h := decodedSize(t, out.Data)
			assert.Equal(t, tt.wantWidth, w)
			assert.Equal(t, tt.wantHeight, h)
		})
	}
}

func TestImageProcessor_TransformRejects(t *testing.T) {
	processor := NewImageProcessor(500, 85)
	src := createTestPNG(t, 10, 10)

	tests := []struct {
		name string
		data io.Reader
		opts photo.TransformOptions
	}{
		{name: "oversized box", data: bytes.NewReader(src), opts: photo.TransformOptions{Width: 600, Height: 10}},
		{name: "zero height", data: bytes.NewReader(src), opts: photo.TransformOptions{Width: 10}},
		{name: "unknown mode", data: bytes.NewReader(src), opts: photo.TransformOptions{Width: 10, Height: 10, Mode: "stretch"}},
		{name: "not an image", data: strings.NewReader("hello"), opts: photo.TransformOptions{Width: 10, Height: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.Transform(context.Background(), tt.data, tt.opts)
			assert.ErrorIs(t, err, photo.ErrValidation)
		})
	}
}

func TestFillCrop(t *testing.T) {
	tests := []struct {
		name string
		src  image.Rectangle
		w, h int
		want image.Rectangle
	}{
		{name: "wide source crops sides", src: image.Rect(0, 0, 400, 200), w: 1, h: 1, want: image.Rect(100, 0, 300, 200)},
		{name: "tall source crops top and bottom", src: image.Rect(0, 0, 200, 400), w: 2, h: 1, want: image.Rect(0, 150, 200, 250)},
		{name: "offset bounds", src: image.Rect(10, 10, 110, 60), w: 2, h: 1, want: image.Rect(10, 10, 110, 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fillCrop(tt.src, tt.w, tt.h))
		})
	}
}

func TestImageProcessor_ValidateImage(t *testing.T) {
	processor := NewImageProcessor(0, 0)

	tests := []struct {
		name        string
		data        []byte
		contentType string
		wantErr     bool
	}{
		{name: "valid png", data: createTestPNG(t, 10, 10), contentType: "image/png"},
		{name: "valid jpeg", data: createTestJPEG(t, 10, 10), contentType: "image/jpeg"},
		{name: "mismatched type", data: createTestPNG(t, 10, 10), contentType: "image/jpeg", wantErr: true},
		{name: "unsupported type", data: createTestPNG(t, 10, 10), contentType: "application/pdf", wantErr: true},
		{name: "garbage", data: []byte("not an image"), contentType: "image/png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := processor.ValidateImage(context.Background(), bytes.NewReader(tt.data), tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, photo.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
