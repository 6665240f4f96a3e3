package fitmetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2beens/vitalsync/internal/auth"
	"github.com/2beens/vitalsync/internal/googlefit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncerMock struct {
	synced int
	err    error

	gotUserID        string
	gotStart, gotEnd time.Time
}

func (m *syncerMock) Sync(_ context.Context, userID string, start, end time.Time) (int, error) {
	m.gotUserID = userID
	m.gotStart, m.gotEnd = start, end
	return m.synced, m.err
}

type repoMock struct {
	metrics  []DailyMetric
	gotDays  int
	upserted []DailyMetric
	byDate   map[string]DailyMetric
}

var _ metricsRepo = (*repoMock)(nil)

func (m *repoMock) Upsert(_ context.Context, metric DailyMetric) (DailyMetric, error) {
	m.upserted = append(m.upserted, metric)
	return metric, nil
}

func (m *repoMock) List(_ context.Context, _ string, days int) ([]DailyMetric, error) {
	m.gotDays = days
	return m.metrics, nil
}

func (m *repoMock) GetByDate(_ context.Context, _ string, date time.Time) (DailyMetric, error) {
	metric, ok := m.byDate[date.Format(DateLayout)]
	if !ok {
		return DailyMetric{}, ErrMetricNotFound
	}
	return metric, nil
}

var testNow = time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)

func newTestMetricsHandler(syncer *syncerMock, repo *repoMock) *Handler {
	return &Handler{
		syncer: syncer,
		repo:   repo,
		now:    func() time.Time { return testNow },
	}
}

func userRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	return req.WithContext(auth.ContextWithUserID(req.Context(), "user@test.com"))
}

func TestHandler_Sync_defaultRange(t *testing.T) {
	syncer := &syncerMock{synced: 12}
	handler := newTestMetricsHandler(syncer, &repoMock{})

	rr := httptest.NewRecorder()
	handler.HandleSync(rr, userRequest("POST", "/fit/sync", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp syncResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 12, resp.Synced)
	assert.Contains(t, resp.Message, "12 days")

	assert.Equal(t, "user@test.com", syncer.gotUserID)
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	assert.True(t, syncer.gotStart.Equal(today.AddDate(0, 0, -30)))
	// the end of the inclusive range is the start of the next day
	assert.True(t, syncer.gotEnd.Equal(today.AddDate(0, 0, 1)))
}

func TestHandler_Sync_explicitRange(t *testing.T) {
	syncer := &syncerMock{synced: 31}
	handler := newTestMetricsHandler(syncer, &repoMock{})

	body := bytes.NewBufferString(`{"startDate": "2024-01-01", "endDate": "2024-01-31"}`)
	rr := httptest.NewRecorder()
	handler.HandleSync(rr, userRequest("POST", "/fit/sync", body))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, syncer.gotStart.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, syncer.gotEnd.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestHandler_Sync_invalidRange(t *testing.T) {
	handler := newTestMetricsHandler(&syncerMock{}, &repoMock{})

	body := bytes.NewBufferString(`{"startDate": "2024-02-01", "endDate": "2024-01-01"}`)
	rr := httptest.NewRecorder()
	handler.HandleSync(rr, userRequest("POST", "/fit/sync", body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body = bytes.NewBufferString(`{"startDate": "not-a-date"}`)
	rr = httptest.NewRecorder()
	handler.HandleSync(rr, userRequest("POST", "/fit/sync", body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Sync_errorMapping(t *testing.T) {
	testCases := []struct {
		name              string
		syncErr           error
		expectedStatus    int
		expectedErrorType string
	}{
		{
			name:              "NotConnected",
			syncErr:           googlefit.ErrNoToken,
			expectedStatus:    http.StatusBadRequest,
			expectedErrorType: "MissingOAuthConsent",
		},
		{
			name:              "NoRefreshToken",
			syncErr:           googlefit.ErrNoRefreshToken,
			expectedStatus:    http.StatusBadRequest,
			expectedErrorType: "MissingRefreshToken",
		},
		{
			name:              "RefreshRejected",
			syncErr:           googlefit.ErrRefreshFailed,
			expectedStatus:    http.StatusUnauthorized,
			expectedErrorType: "StaleRefreshToken",
		},
		{
			name:              "AuthExpired",
			syncErr:           googlefit.ErrAuthExpired,
			expectedStatus:    http.StatusUnauthorized,
			expectedErrorType: "StaleRefreshToken",
		},
		{
			name:              "Forbidden",
			syncErr:           googlefit.ErrForbidden,
			expectedStatus:    http.StatusForbidden,
			expectedErrorType: "GoogleApiForbidden",
		},
		{
			name:              "GenericUpstream",
			syncErr:           errors.New("connection reset"),
			expectedStatus:    http.StatusInternalServerError,
			expectedErrorType: "UpstreamError",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestMetricsHandler(&syncerMock{err: tc.syncErr}, &repoMock{})

			rr := httptest.NewRecorder()
			handler.HandleSync(rr, userRequest("POST", "/fit/sync", nil))

			require.Equal(t, tc.expectedStatus, rr.Code)
			var resp struct {
				Success   bool   `json:"success"`
				ErrorType string `json:"errorType"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tc.expectedErrorType, resp.ErrorType)
		})
	}
}

func TestHandler_Sync_noUser(t *testing.T) {
	handler := newTestMetricsHandler(&syncerMock{}, &repoMock{})

	rr := httptest.NewRecorder()
	handler.HandleSync(rr, httptest.NewRequest("POST", "/fit/sync", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandler_List(t *testing.T) {
	repo := &repoMock{
		metrics: []DailyMetric{
			{UserID: "user@test.com", Date: testNow.AddDate(0, 0, -1), Steps: 5000},
			{UserID: "user@test.com", Date: testNow, Steps: 7000},
		},
	}
	handler := newTestMetricsHandler(&syncerMock{}, repo)

	rr := httptest.NewRecorder()
	handler.HandleList(rr, userRequest("GET", "/metrics?days=7", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 7, repo.gotDays)
	var metrics []DailyMetric
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &metrics))
	require.Len(t, metrics, 2)
	assert.Equal(t, 5000, metrics[0].Steps)
}

func TestHandler_List_defaultsAndValidation(t *testing.T) {
	repo := &repoMock{}
	handler := newTestMetricsHandler(&syncerMock{}, repo)

	rr := httptest.NewRecorder()
	handler.HandleList(rr, userRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultListDays, repo.gotDays)
	// no metrics stored still serves an empty array, not null
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	rr = httptest.NewRecorder()
	handler.HandleList(rr, userRequest("GET", "/metrics?days=0", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	handler.HandleList(rr, userRequest("GET", "/metrics?days=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Upsert(t *testing.T) {
	repo := &repoMock{}
	handler := newTestMetricsHandler(&syncerMock{}, repo)

	body := bytes.NewBufferString(`{
		"date": "2026-08-30",
		"steps": 8000,
		"calories": 2100,
		"rhr": 55,
		"totalSleepMinutes": 460
	}`)
	rr := httptest.NewRecorder()
	handler.HandleUpsert(rr, userRequest("POST", "/metrics", body))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, repo.upserted, 1)
	stored := repo.upserted[0]
	assert.Equal(t, "user@test.com", stored.UserID)
	assert.True(t, stored.Date.Equal(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 8000, stored.Steps)
	require.NotNil(t, stored.RestingHeartRate)
	assert.Equal(t, 55, *stored.RestingHeartRate)
}

func TestHandler_Upsert_invalidDate(t *testing.T) {
	handler := newTestMetricsHandler(&syncerMock{}, &repoMock{})

	body := bytes.NewBufferString(`{"date": "30.08.2026", "steps": 8000}`)
	rr := httptest.NewRecorder()
	handler.HandleUpsert(rr, userRequest("POST", "/metrics", body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Summary(t *testing.T) {
	latest := DailyMetric{UserID: "user@test.com", Date: testNow, Steps: 7000}
	latest.SleepScore = intPtr(95)
	latest.RecoveryScore = intPtr(85)
	latest.HRV = intPtr(85)
	repo := &repoMock{metrics: []DailyMetric{latest}}
	handler := newTestMetricsHandler(&syncerMock{}, repo)

	rr := httptest.NewRecorder()
	handler.HandleSummary(rr, userRequest("GET", "/metrics/summary", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var summary Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 89, summary.ReadinessScore)
	assert.Equal(t, 7, summary.StrainScore)
}

func TestHandler_Summary_noData(t *testing.T) {
	handler := newTestMetricsHandler(&syncerMock{}, &repoMock{})

	rr := httptest.NewRecorder()
	handler.HandleSummary(rr, userRequest("GET", "/metrics/summary", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var summary Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	// pure defaults: round(0.4*70 + 0.3*70 + 0.3*50)
	assert.Equal(t, 64, summary.ReadinessScore)
	assert.Nil(t, summary.ReadinessChange)
	assert.Equal(t, 0, summary.StrainScore)
}

func TestHandler_Import_invalidFile(t *testing.T) {
	handler := newTestMetricsHandler(&syncerMock{}, &repoMock{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "workout.fit")
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not a fit file"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := userRequest("POST", "/metrics/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.HandleImport(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Import_missingFile(t *testing.T) {
	handler := newTestMetricsHandler(&syncerMock{}, &repoMock{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	req := userRequest("POST", "/metrics/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.HandleImport(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
