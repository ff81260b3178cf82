package dto

import (
	"time"

	"github.com/safeart/postercheck/internal/job"
)

// SubmitJobRequest is the POST /api/v1/jobs body. Field-level validation
// beyond presence (URL shape, platform membership) is the coordinator's
// job so the CLI and crawler paths share the same rules.
type SubmitJobRequest struct {
	RequestID string       `json:"requestId"`
	Platform  string       `json:"platform"`
	PosterURL string       `json:"posterUrl"`
	PageURL   string       `json:"pageUrl"`
	Metadata  job.Metadata `json:"metadata"`
}

// SubmitJobResponse is returned for every accepted submission outcome:
// created, cached, or idempotent replay.
type SubmitJobResponse struct {
	JobID           string `json:"jobId"`
	Status          string `json:"status"`
	IsCacheHit      bool   `json:"isCacheHit"`
	CachedFromJobID string `json:"cachedFromJobId,omitempty"`
	Message         string `json:"message"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	Platform string `form:"platform"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the read-model representation of a job record.
type JobDTO struct {
	JobID                string           `json:"jobId"`
	RequestID            string           `json:"requestId,omitempty"`
	PosterHash           string           `json:"posterHash"`
	Platform             string           `json:"platform"`
	PosterURL            string           `json:"posterUrl"`
	Status               string           `json:"status"`
	Metadata             job.Metadata     `json:"metadata"`
	Result               *job.Verdict     `json:"result,omitempty"`
	Error                *job.ErrorDetail `json:"error,omitempty"`
	RetryCount           int              `json:"retryCount,omitempty"`
	ProcessingDurationMs int64            `json:"processingDurationMs,omitempty"`
	CreatedAt            string           `json:"createdAt"`
	UpdatedAt            string           `json:"updatedAt"`
	StartedAt            string           `json:"startedAt,omitempty"`
	CompletedAt          string           `json:"completedAt,omitempty"`
}

// FromJob maps a job record into its DTO.
func FromJob(j *job.Job) JobDTO {
	d := JobDTO{
		JobID:                j.JobID,
		RequestID:            j.RequestID,
		PosterHash:           j.PosterHash,
		Platform:             string(j.Source.Platform),
		PosterURL:            j.Source.URL,
		Status:               string(j.Status),
		Metadata:             j.Metadata,
		Result:               j.Result,
		Error:                j.Error,
		RetryCount:           j.RetryCount,
		ProcessingDurationMs: j.ProcessingDurationMs,
		CreatedAt:            j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            j.UpdatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		d.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		d.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return d
}

