package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"imagine/internal/domain/photo"
	"imagine/internal/testutils"
	"imagine/internal/web/handlers"
)

// APIIntegrationTestSuite drives the HTTP router against real backends
type APIIntegrationTestSuite struct {
	suite.Suite
	testSuite *testutils.TestSuite
	ctx       context.Context
	router    http.Handler
}

func (s *APIIntegrationTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping container-backed tests in short mode")
	}

	s.ctx = context.Background()

	testSuite, err := testutils.SetupTestSuite(s.ctx)
	require.NoError(s.T(), err, "Failed to setup test suite")
	s.testSuite = testSuite

	s.router = handlers.NewWithContainer(testSuite.Container).Routes()
}

func (s *APIIntegrationTestSuite) TearDownSuite() {
	if s.testSuite != nil {
		err := s.testSuite.Cleanup(s.ctx)
		require.NoError(s.T(), err, "Failed to cleanup test suite")
	}
}

func (s *APIIntegrationTestSuite) SetupTest() {
	err := s.testSuite.ResetData(s.ctx)
	require.NoError(s.T(), err, "Failed to reset test data")
}

func (s *APIIntegrationTestSuite) do(req *http.Request, caller *photo.User) *httptest.ResponseRecorder {
	if caller != nil {
		req.Header.Set(handlers.UserIDHeader, caller.ID.String())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *APIIntegrationTestSuite) register(username string) *photo.User {
	rec := s.do(testutils.MakeJSONRequest(http.MethodPost, "/api/users", map[string]string{
		"username": username,
		"email":    username + "@test.com",
	}), nil)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	var u photo.User
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &u))
	return &u
}

func (s *APIIntegrationTestSuite) TestReadiness() {
	// When: all backends are up
	rec := s.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), nil)

	// Then: readiness passes
	assert.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
}

func (s *APIIntegrationTestSuite) TestUploadTagRateAndSearch() {
	// Given: an owner and a rater
	owner := s.register("alice")
	rater := s.register("bob")

	// When: the owner uploads a photo through the multipart endpoint
	body, contentType, err := testutils.CreateMultipartFormData("harbor.png", testutils.GenerateTestPNG(32, 24), map[string]string{
		"description": "Boats in the harbor",
		"tags":        "boats, harbor",
	})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/api/photos", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req, owner)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	var created photo.Photo
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(s.T(), created.Tags, 2)

	// When: a third tag is attached and the rater scores the photo
	rec = s.do(testutils.MakeJSONRequest(http.MethodPost, fmt.Sprintf("/api/photos/%d/tags", created.ID), map[string]string{"name": "sea"}), owner)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(testutils.MakeJSONRequest(http.MethodPost, fmt.Sprintf("/api/photos/%d/ratings", created.ID), map[string]int{"rating": 4}), rater)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	// Then: a second rating by the same user is rejected
	rec = s.do(testutils.MakeJSONRequest(http.MethodPost, fmt.Sprintf("/api/photos/%d/ratings", created.ID), map[string]int{"rating": 2}), rater)
	assert.Equal(s.T(), http.StatusConflict, rec.Code, rec.Body.String())

	// And: the photo is found by its new tag with its average applied
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/search?keyword=sea&rating_min=3.5", nil), nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	var results []photo.Photo
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(s.T(), results, 1)
	assert.Equal(s.T(), created.ID, results[0].ID)
	assert.Len(s.T(), results[0].Tags, 3)

	rec = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/photos/%d/rating", created.ID), nil), nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var avg handlers.AverageRatingResponse
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &avg))
	assert.Equal(s.T(), 4.0, avg.Average)
}

func (s *APIIntegrationTestSuite) TestBannedUserIsRejected() {
	// Given: an admin and a user the admin bans
	admin := s.register("root")
	u := s.register("mallory")

	rec := s.do(httptest.NewRequest(http.MethodPut, "/api/users/"+u.ID.String()+"/ban", nil), admin)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	// When: the banned user calls an authenticated endpoint
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), u)

	// Then: access is forbidden
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	// And: a regular user cannot list accounts
	other := s.register("carol")
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/users", nil), other)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)
}

func TestAPIIntegrationSuite(t *testing.T) {
	suite.Run(t, new(APIIntegrationTestSuite))
}
