package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagine/internal/domain/photo"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if filename != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreatePhotoHandler(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, map[string]string{
		"description": "harbour at dawn",
		"tags":        "sea, boats,,sea",
	}, "harbour.png", "", pngHeader)

	req := httptest.NewRequest(http.MethodPost, "/api/photos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(UserIDHeader, f.member.ID.String())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, f.photos.created)

	created := f.photos.created
	assert.Equal(t, f.member.ID, created.Owner)
	assert.Equal(t, "harbour at dawn", created.Description)
	assert.Equal(t, []string{"sea", "boats", "sea"}, created.Tags)
	assert.Equal(t, "harbour.png", created.Filename)
	// Sniffed from the bytes since the part carried no type
	assert.Equal(t, "image/png", created.ContentType)
	assert.Equal(t, pngHeader, f.photos.body)
}

func TestCreatePhotoHandlerRejects(t *testing.T) {
	f := newFixture(t)

	t.Run("missing file", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"description": "no file"}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/photos", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(UserIDHeader, f.member.ID.String())
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/photos", f.member, map[string]string{"description": "json"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service validation", func(t *testing.T) {
		f.photos.createErr = fmt.Errorf("%w: content type %q is not allowed", photo.ErrValidation, "image/bmp")
		body, contentType := multipartBody(t, nil, "a.bmp", "image/bmp", []byte("BM...."))
		req := httptest.NewRequest(http.MethodPost, "/api/photos", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(UserIDHeader, f.member.ID.String())
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decodeError(t, rec).Error)
	})

	t.Run("anonymous", func(t *testing.T) {
		body, contentType := multipartBody(t, nil, "a.png", "image/png", pngHeader)
		req := httptest.NewRequest(http.MethodPost, "/api/photos", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single tag",
			input:    "vacation",
			expected: []string{"vacation"},
		},
		{
			name:     "multiple tags",
			input:    "vacation,sunset,beach",
			expected: []string{"vacation", "sunset", "beach"},
		},
		{
			name:     "tags with spaces",
			input:    "vacation, sunset , beach",
			expected: []string{"vacation", "sunset", "beach"},
		},
		{
			name:     "tags with empty values",
			input:    "vacation,,beach",
			expected: []string{"vacation", "beach"},
		},
		{
			name:     "case is preserved",
			input:    "Beach,beach",
			expected: []string{"Beach", "beach"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitTags(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
