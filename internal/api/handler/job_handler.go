package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safeart/postercheck/internal/api/dto"
	"github.com/safeart/postercheck/internal/coordinator"
	"github.com/safeart/postercheck/internal/job"
	"github.com/safeart/postercheck/internal/jobstore"
)

// SubmitJob handles POST /api/v1/jobs
// Submits a poster for moderation. Byte-identical content under the same
// platform resolves to the same job, so this endpoint is safe to retry.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp, err := h.coordinator.Submit(c.Request.Context(), coordinator.Request{
		RequestID: req.RequestID,
		Platform:  job.Platform(req.Platform),
		PosterURL: req.PosterURL,
		PageURL:   req.PageURL,
		Metadata:  req.Metadata,
	})
	if err != nil {
		var validation *job.ValidationError
		var originFetch *job.OriginFetchError
		switch {
		case errors.As(err, &validation):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed",
				"details": validation.Problems,
			})
		case errors.As(err, &originFetch):
			h.logger.Error("Failed to fetch poster from origin",
				slog.String("url", originFetch.URL),
				slog.String("error", originFetch.Error()),
			)
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Failed to fetch poster from origin",
			})
		default:
			h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to submit job",
			})
		}
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.SubmitJobResponse{
		JobID:           resp.JobID,
		Status:          string(resp.Status),
		IsCacheHit:      resp.IsCacheHit,
		CachedFromJobID: resp.CachedFromJobID,
		Message:         resp.Message,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id is required",
		})
		return
	}

	j, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(j))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := jobstore.Filter{
		Status:   job.Status(req.Status),
		Platform: job.Platform(req.Platform),
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.FromJob(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&jobstore.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}
