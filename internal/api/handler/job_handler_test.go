package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/analytics-engine/internal/api/dto"
	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/queue"
)

type fakeAdapter struct {
	requests []queue.Request
	jobID    string
	err      error
}

func (f *fakeAdapter) Enqueue(ctx context.Context, req queue.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.jobID, f.err
}

func (f *fakeAdapter) Mode() queue.Mode {
	return queue.ModeImmediate
}

func testDeps(adapter queue.Adapter) *Dependencies {
	return &Dependencies{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Adapter: adapter,
	}
}

func performRequest(t *testing.T, register func(*gin.Engine), method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	register(router)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJobHandler_SubmitJob(t *testing.T) {
	adapter := &fakeAdapter{jobID: "job-1"}
	h := NewJobHandler(testDeps(adapter))

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/api/v1/jobs", h.SubmitJob)
	}, http.MethodPost, "/api/v1/jobs",
		`{"job_type":"daily_briefing","tenant_id":"tenant-1","payload":{"date":"2026-08-30"},"dedupe_key":"daily-briefing:2026-08-30"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.SubmitJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, domain.JobStatusQueued, resp.Status)
	assert.False(t, resp.Deduplicated)

	require.Len(t, adapter.requests, 1)
	assert.Equal(t, "daily_briefing", adapter.requests[0].Type)
	assert.Equal(t, "daily-briefing:2026-08-30", adapter.requests[0].DedupeKey)
}

func TestJobHandler_SubmitJob_Deduplicated(t *testing.T) {
	adapter := &fakeAdapter{jobID: ""}
	h := NewJobHandler(testDeps(adapter))

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/api/v1/jobs", h.SubmitJob)
	}, http.MethodPost, "/api/v1/jobs",
		`{"job_type":"daily_briefing","tenant_id":"tenant-1","dedupe_key":"daily-briefing:2026-08-30"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.SubmitJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Deduplicated)
	assert.Empty(t, resp.JobID)
}

func TestJobHandler_SubmitJob_MissingFields(t *testing.T) {
	adapter := &fakeAdapter{}
	h := NewJobHandler(testDeps(adapter))

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/api/v1/jobs", h.SubmitJob)
	}, http.MethodPost, "/api/v1/jobs", `{"tenant_id":"tenant-1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, adapter.requests)
}

func TestJobHandler_SubmitJob_ValidationErrorFromAdapter(t *testing.T) {
	adapter := &fakeAdapter{err: domain.NewValidationError(assert.AnError)}
	h := NewJobHandler(testDeps(adapter))

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/api/v1/jobs", h.SubmitJob)
	}, http.MethodPost, "/api/v1/jobs",
		`{"job_type":"daily_briefing","tenant_id":"tenant-1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandler_SubmitJob_AdapterFailure(t *testing.T) {
	adapter := &fakeAdapter{err: assert.AnError}
	h := NewJobHandler(testDeps(adapter))

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/api/v1/jobs", h.SubmitJob)
	}, http.MethodPost, "/api/v1/jobs",
		`{"job_type":"daily_briefing","tenant_id":"tenant-1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestJobHandler_GetJob_InvalidID(t *testing.T) {
	h := NewJobHandler(testDeps(&fakeAdapter{}))

	w := performRequest(t, func(r *gin.Engine) {
		r.GET("/api/v1/jobs/:job_id", h.GetJob)
	}, http.MethodGet, "/api/v1/jobs/not-a-uuid", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "valid UUID")
}

func TestJobHandler_GetJob_RequiresTenant(t *testing.T) {
	h := NewJobHandler(testDeps(&fakeAdapter{}))

	w := performRequest(t, func(r *gin.Engine) {
		r.GET("/api/v1/jobs/:job_id", h.GetJob)
	}, http.MethodGet, "/api/v1/jobs/0b26d962-94d0-4b29-8ef5-3552ae43d5f7", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tenant_id is required")
}

func TestJobHandler_CancelJob_RequiresTenant(t *testing.T) {
	h := NewJobHandler(testDeps(&fakeAdapter{}))

	w := performRequest(t, func(r *gin.Engine) {
		r.POST("/api/v1/jobs/:job_id/cancel", h.CancelJob)
	}, http.MethodPost, "/api/v1/jobs/0b26d962-94d0-4b29-8ef5-3552ae43d5f7/cancel", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tenant_id is required")
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "empty uses fallback", raw: "", want: 50},
		{name: "valid", raw: "25", want: 25},
		{name: "not a number", raw: "abc", want: 50},
		{name: "zero", raw: "0", want: 50},
		{name: "negative", raw: "-5", want: 50},
		{name: "over the cap", raw: "1000", want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLimit(tt.raw, 50))
		})
	}
}
