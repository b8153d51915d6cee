package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mailcenter/billing/internal/infrastructure/scheduler"
	"github.com/mailcenter/billing/internal/interfaces/http/dto"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// JobSubmitter queues billing jobs
type JobSubmitter interface {
	SubmitJob(job *scheduler.Job) error
}

// SystemHandler serves health probes and manual job triggers
type SystemHandler struct {
	BaseHandler
	version   string
	startTime time.Time
	checks    map[string]ReadinessCheck
	jobs      JobSubmitter
	now       func() time.Time
}

// NewSystemHandler creates a new SystemHandler. jobs may be nil when the
// scheduler is disabled.
func NewSystemHandler(version string, checks map[string]ReadinessCheck, jobs JobSubmitter) *SystemHandler {
	return &SystemHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
		jobs:      jobs,
		now:       time.Now,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"Mail Center Billing"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// ReadinessResponse lists each dependency's state
type ReadinessResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// JobQueuedResponse acknowledges a queued job
type JobQueuedResponse struct {
	JobID    uuid.UUID  `json:"job_id"`
	Kind     string     `json:"kind"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	RunAt    time.Time  `json:"run_at"`
}

// Health godoc
//
//	@ID			health
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=SystemInfoResponse}
//	@Router		/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "Mail Center Billing",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready godoc
//
//	@ID			ready
//	@Summary	Readiness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=ReadinessResponse}
//	@Failure	503	{object}	dto.Response{data=ReadinessResponse}
//	@Router		/ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Ready = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: resp.Ready, Data: resp})
}

// TriggerJob godoc
//
//	@ID				triggerBillingJob
//	@Summary		Queue a billing job now
//	@Description	Runs one step of the daily billing run outside its schedule. invoice_schedules sweeps every tenant; the other kinds run for the caller's tenant.
//	@Tags			system
//	@Produce		json
//	@Param			kind	path		string	true	"daily_storage, mark_overdue, invoice_schedules or autopay"
//	@Success		202		{object}	dto.Response{data=JobQueuedResponse}
//	@Failure		400		{object}	dto.ErrorResponse
//	@Failure		503		{object}	dto.ErrorResponse
//	@Security		BearerAuth
//	@Router			/billing/jobs/{kind} [post]
func (h *SystemHandler) TriggerJob(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	if h.jobs == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, "Billing scheduler is disabled")
		return
	}
	kind, err := scheduler.ParseJobKind(c.Param("kind"))
	if err != nil {
		h.BadRequest(c, "Unknown job kind "+c.Param("kind"))
		return
	}

	var scope *uuid.UUID
	if kind != scheduler.JobInvoiceSchedules {
		scope = &tenantID
	}
	job := scheduler.NewJob(kind, scope, h.now().UTC(), 0)
	if err := h.jobs.SubmitJob(job); err != nil {
		if errors.Is(err, scheduler.ErrJobQueueFull) || errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(JobQueuedResponse{
		JobID:    job.ID,
		Kind:     string(job.Kind),
		TenantID: job.TenantID,
		RunAt:    job.RunAt,
	}))
}
