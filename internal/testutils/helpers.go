package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"maps"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"

	"imagine/internal/config"
	"imagine/internal/domain/photo"
	"imagine/internal/observability"
	"imagine/internal/services"
)

// TestSuite is a fully wired service graph over live containers
type TestSuite struct {
	Containers *TestContainers
	Config     *config.Config
	Container  *services.Container
}

// SetupTestSuite starts the backends and builds the services on top of them
func SetupTestSuite(ctx context.Context) (*TestSuite, error) {
	tc, err := SetupTestContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("containers: %w", err)
	}

	cfg := &config.Config{
		Environment: "test",
		DatabaseURL: tc.DatabaseURL,
		Storage:     tc.StorageConfig(),
		Cache:       tc.CacheConfig(),
		Photos:      config.PhotoConfig{MaxTransformSide: 1000, MaxPageSize: 100},
	}

	container, err := services.NewContainer(cfg, tc.DB, tc.Storage, tc.Cache, observability.NewNopLogger())
	if err != nil {
		_ = tc.Cleanup(ctx) //nolint:errcheck // already failing
		return nil, fmt.Errorf("services: %w", err)
	}

	return &TestSuite{Containers: tc, Config: cfg, Container: container}, nil
}

// Cleanup stops every container
func (ts *TestSuite) Cleanup(ctx context.Context) error {
	return ts.Containers.Cleanup(ctx)
}

// ResetData gives each test an empty database and cache
func (ts *TestSuite) ResetData(ctx context.Context) error {
	if err := ts.Containers.ResetDatabase(ctx); err != nil {
		return err
	}
	return ts.Containers.FlushRedis(ctx)
}

// CreateTestUser registers a user with a unique name
func (ts *TestSuite) CreateTestUser(ctx context.Context) (*photo.User, error) {
	name := "user_" + RandomString(8)
	return ts.Container.UserService().CreateUser(ctx, name, RandomEmail(), "Test User")
}

// CreateTestPhoto uploads a 16x16 PNG owned by owner
func (ts *TestSuite) CreateTestPhoto(ctx context.Context, owner *photo.User, description string, tags []string) (*photo.Photo, error) {
	data := GenerateTestPNG(16, 16)
	return ts.Container.PhotoService().CreatePhoto(ctx, &photo.CreatePhotoRequest{
		Owner:       owner.ID,
		Description: description,
		Tags:        tags,
		Filename:    "test.png",
		ContentType: "image/png",
		Size:        int64(len(data)),
	}, bytes.NewReader(data))
}

// GenerateTestPNG draws a width x height gradient so that resized output
// differs from the source
func GenerateTestPNG(width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CreateMultipartFormData builds an upload body with data under the "file"
// part followed by fields in key order
func CreateMultipartFormData(filename string, data []byte, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// MakeJSONRequest builds a test request whose body is payload encoded as JSON
func MakeJSONRequest(method, target string, payload any) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns n lowercase alphanumerics
func RandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomAlphabet[rand.IntN(len(randomAlphabet))]
	}
	return string(b)
}

// RandomEmail returns a unique address on the test.com domain
func RandomEmail() string {
	return RandomString(8) + "@test.com"
}
