package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobSubmitter struct {
	jobs []*scheduler.Job
	err  error
}

func (f *fakeJobSubmitter) SubmitJob(job *scheduler.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func systemRouter(h *SystemHandler) *gin.Engine {
	return newTestEngine(func(r gin.IRoutes) {
		r.GET("/health", h.Health)
		r.GET("/ready", h.Ready)
		r.POST("/jobs/:kind", h.TriggerJob)
	})
}

func TestSystemHandler_Health(t *testing.T) {
	r := systemRouter(NewSystemHandler("1.4.0", nil, nil))

	w := doRequest(t, r, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var info SystemInfoResponse
	decodeData(t, w, &info)
	assert.Equal(t, "1.4.0", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestSystemHandler_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all checks pass", func(t *testing.T) {
		r := systemRouter(NewSystemHandler("dev", map[string]ReadinessCheck{"database": ok, "redis": ok}, nil))

		w := doRequest(t, r, http.MethodGet, "/ready", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ReadinessResponse
		decodeData(t, w, &resp)
		assert.True(t, resp.Ready)
		assert.Equal(t, "ok", resp.Checks["redis"])
	})

	t.Run("a failing dependency", func(t *testing.T) {
		down := func(context.Context) error { return errors.New("dial tcp: connection refused") }
		r := systemRouter(NewSystemHandler("dev", map[string]ReadinessCheck{"database": ok, "redis": down}, nil))

		w := doRequest(t, r, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
		assert.Contains(t, w.Body.String(), `"ready":false`)
	})
}

func TestSystemHandler_TriggerJob(t *testing.T) {
	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	newHandler := func(jobs JobSubmitter) *SystemHandler {
		h := NewSystemHandler("dev", nil, jobs)
		h.now = func() time.Time { return now }
		return h
	}

	t.Run("tenant scoped kind", func(t *testing.T) {
		jobs := &fakeJobSubmitter{}
		r := systemRouter(newHandler(jobs))

		w := doRequest(t, r, http.MethodPost, "/jobs/mark_overdue", nil)

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		require.Len(t, jobs.jobs, 1)
		assert.Equal(t, scheduler.JobMarkOverdue, jobs.jobs[0].Kind)
		require.NotNil(t, jobs.jobs[0].TenantID)
		assert.Equal(t, testTenantID, *jobs.jobs[0].TenantID)
		assert.Equal(t, now, jobs.jobs[0].RunAt)

		var resp JobQueuedResponse
		decodeData(t, w, &resp)
		assert.Equal(t, jobs.jobs[0].ID, resp.JobID)
		assert.Equal(t, "mark_overdue", resp.Kind)
	})

	t.Run("invoice schedules sweep every tenant", func(t *testing.T) {
		jobs := &fakeJobSubmitter{}
		r := systemRouter(newHandler(jobs))

		w := doRequest(t, r, http.MethodPost, "/jobs/invoice_schedules", nil)

		require.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, jobs.jobs, 1)
		assert.Nil(t, jobs.jobs[0].TenantID)
	})

	t.Run("unknown kind", func(t *testing.T) {
		jobs := &fakeJobSubmitter{}
		r := systemRouter(newHandler(jobs))

		w := doRequest(t, r, http.MethodPost, "/jobs/reindex", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, jobs.jobs)
	})

	t.Run("scheduler disabled", func(t *testing.T) {
		r := systemRouter(newHandler(nil))

		w := doRequest(t, r, http.MethodPost, "/jobs/autopay", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("queue full", func(t *testing.T) {
		r := systemRouter(newHandler(&fakeJobSubmitter{err: scheduler.ErrJobQueueFull}))

		w := doRequest(t, r, http.MethodPost, "/jobs/daily_storage", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "job queue is full", decodeError(t, w).Message)
	})
}
