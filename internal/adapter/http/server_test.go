package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/disaster-archive-etl/internal/adapter/http"
	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
	"github.com/couchcryptid/disaster-archive-etl/internal/pipeline"
)

type mockRuns struct {
	readyErr error
	latest   *pipeline.RunResult
	runErr   error
}

func (m *mockRuns) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockRuns) LatestRun() (*pipeline.RunResult, bool) {
	return m.latest, m.latest != nil
}

func (m *mockRuns) RunOnce(_ context.Context) (*pipeline.RunResult, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.latest, nil
}

func newTestServer(runs *mockRuns) *httpadapter.Server {
	return httpadapter.NewServer(":0", runs, slog.Default())
}

func sampleRun() *pipeline.RunResult {
	return &pipeline.RunResult{
		RunID:      "run-123",
		StartedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 14, 9, 0, 2, 0, time.UTC),
		Report:     domain.QualityReport{RowsIn: 10, RowsOut: 9},
	}
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockRuns{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockRuns{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockRuns{readyErr: fmt.Errorf("no run yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no run yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockRuns{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLatestRunReturns404BeforeFirstRun(t *testing.T) {
	srv := newTestServer(&mockRuns{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/run", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestRunReturnsReport(t *testing.T) {
	srv := newTestServer(&mockRuns{latest: sampleRun()})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/run", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-123", body.RunID)
	assert.Equal(t, 10, body.Report.RowsIn)
	assert.Equal(t, 9, body.Report.RowsOut)
}

func TestTriggerRun(t *testing.T) {
	srv := newTestServer(&mockRuns{latest: sampleRun()})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-123", body.RunID)
}

func TestTriggerRunFailure(t *testing.T) {
	srv := newTestServer(&mockRuns{runErr: fmt.Errorf("dataset unreadable")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dataset unreadable", body["error"])
}
