package insights_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/vitalsync/internal/auth"
	"github.com/2beens/vitalsync/internal/insights"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	latest     map[string]insights.Insight
	markedRead []int
}

func (m *repoMock) GetLatest(_ context.Context, userID string) (insights.Insight, error) {
	insight, ok := m.latest[userID]
	if !ok {
		return insights.Insight{}, insights.ErrInsightNotFound
	}
	return insight, nil
}

func (m *repoMock) MarkRead(_ context.Context, userID string, insightID int) error {
	insight, ok := m.latest[userID]
	if !ok || insight.ID != insightID {
		return insights.ErrInsightNotFound
	}
	m.markedRead = append(m.markedRead, insightID)
	return nil
}

type generatorMock struct {
	content string
	err     error
}

func (m *generatorMock) GenerateDaily(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func testRouter(repo *repoMock, generator *generatorMock) *mux.Router {
	router := mux.NewRouter()
	insights.NewHandler(repo, generator).SetupRoutes(router)
	return router
}

func userRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(auth.ContextWithUserID(req.Context(), "user@test.com"))
}

func TestHandler_GetLatest(t *testing.T) {
	repo := &repoMock{
		latest: map[string]insights.Insight{
			"user@test.com": {
				ID:          7,
				UserID:      "user@test.com",
				Content:     "Sleep up, recovery up.",
				InsightType: "daily",
				GeneratedAt: time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC),
			},
		},
	}
	router := testRouter(repo, &generatorMock{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("GET", "/insights/latest"))

	require.Equal(t, http.StatusOK, rr.Code)
	var insight insights.Insight
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &insight))
	assert.Equal(t, 7, insight.ID)
	assert.Equal(t, "Sleep up, recovery up.", insight.Content)
}

func TestHandler_GetLatest_noneYet(t *testing.T) {
	router := testRouter(&repoMock{}, &generatorMock{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("GET", "/insights/latest"))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "No insights yet. Sync your Google Fit data to get started!", resp["content"])
}

func TestHandler_Generate(t *testing.T) {
	router := testRouter(&repoMock{}, &generatorMock{content: "Hydrate more on long-run days."})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("POST", "/insights/generate"))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Hydrate more on long-run days.", resp["content"])
}

func TestHandler_Generate_fails(t *testing.T) {
	router := testRouter(&repoMock{}, &generatorMock{err: errors.New("model unavailable")})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("POST", "/insights/generate"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandler_MarkRead(t *testing.T) {
	repo := &repoMock{
		latest: map[string]insights.Insight{
			"user@test.com": {ID: 3, UserID: "user@test.com", Content: "read me"},
		},
	}
	router := testRouter(repo, &generatorMock{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("PATCH", "/insights/3/read"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []int{3}, repo.markedRead)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp["success"])
}

func TestHandler_MarkRead_notFound(t *testing.T) {
	router := testRouter(&repoMock{}, &generatorMock{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("PATCH", "/insights/99/read"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_MarkRead_invalidID(t *testing.T) {
	router := testRouter(&repoMock{}, &generatorMock{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, userRequest("PATCH", "/insights/abc/read"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_noUser(t *testing.T) {
	router := testRouter(&repoMock{}, &generatorMock{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/insights/latest", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
