package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/insightlab/analytics-engine/internal/api/dto"
	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/insightlab/analytics-engine/internal/storage"
)

// JobHandler handles job submission, inspection, and cancellation.
type JobHandler struct {
	logger  *slog.Logger
	storage *storage.Storage
	adapter queue.Adapter
}

// NewJobHandler creates a new JobHandler instance.
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		storage: deps.Storage,
		adapter: deps.Adapter,
	}
}

// SubmitJob handles POST /api/v1/jobs.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID, err := h.adapter.Enqueue(c.Request.Context(), queue.Request{
		Type:        req.JobType,
		TenantID:    req.TenantID,
		Payload:     req.Payload,
		MaxAttempts: req.MaxAttempts,
		DedupeKey:   req.DedupeKey,
	})
	if err != nil {
		if domain.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to enqueue job",
			slog.String("job_type", req.JobType),
			slog.String("tenant_id", req.TenantID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	if jobID == "" {
		c.JSON(http.StatusOK, dto.SubmitJobResponse{Deduplicated: true})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:  jobID,
		Status: domain.JobStatusQueued,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id. The lookup is tenant-scoped so
// one tenant cannot read another tenant's job or payload.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tenant_id is required",
		})
		return
	}

	job, err := h.storage.GetTenantJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel. Only jobs still
// waiting in the queue can be cancelled; in-flight jobs run to completion.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tenant_id is required",
		})
		return
	}

	err := h.storage.CancelJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Job is not cancellable - already running or finished",
			})
			return
		}
		h.logger.Error("Failed to cancel job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel job",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": domain.JobStatusCancelled,
	})
}

// ListDeadLetters handles GET /api/v1/jobs/dead-letter.
func (h *JobHandler) ListDeadLetters(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	limit := parseLimit(c.Query("limit"), 50)

	dead, err := h.storage.ListDeadLetters(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("Failed to list dead letters",
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list dead letters",
		})
		return
	}

	jobs := make([]dto.JobDTO, 0, len(dead))
	for i := range dead {
		jobs = append(jobs, jobToDTO(&dead[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
	})
}

func jobToDTO(job *domain.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:       job.ID,
		JobType:     job.Type,
		TenantID:    job.TenantID,
		Payload:     job.Payload,
		Status:      job.Status,
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		EnqueuedAt:  job.EnqueuedAt.UTC().Format(time.RFC3339),
	}
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
