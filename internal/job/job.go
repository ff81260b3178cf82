// Package job defines the job record, its status state machine, and the
// error taxonomy shared by the coordinator, the stores, and the worker.
package job

import (
	"fmt"
	"time"
)

// Source records where a poster was discovered.
type Source struct {
	Platform     Platform  `json:"platform"`
	URL          string    `json:"url"`
	PageURL      string    `json:"pageUrl,omitempty"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// Metadata holds caller-supplied descriptive attributes for a poster.
// Only Title is required; everything else is opaque to the pipeline.
type Metadata struct {
	Title       string         `json:"title"`
	TitleID     string         `json:"titleId,omitempty"`
	ReleaseYear int            `json:"releaseYear,omitempty"`
	Genre       []string       `json:"genre,omitempty"`
	Rating      string         `json:"rating,omitempty"`
	Description string         `json:"description,omitempty"`
	Cast        []string       `json:"cast,omitempty"`
	Director    string         `json:"director,omitempty"`
	Additional  map[string]any `json:"additionalMetadata,omitempty"`
}

// StorageRef is an opaque handle to the source bytes in the blob store.
type StorageRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// CacheInfo carries dedup bookkeeping for a job.
type CacheInfo struct {
	PosterHash      string `json:"posterHash"`
	IsCacheHit      bool   `json:"isCacheHit"`
	CachedFromJobID string `json:"cachedFromJobId,omitempty"`
}

// ErrorDetail is the failure payload persisted onto a failed job.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Job is the unit of work and its record of truth. The job ID is a pure
// function of (platform, poster hash): byte-identical content submitted
// under the same platform always resolves to the same record.
type Job struct {
	JobID      string `json:"jobId"`
	RequestID  string `json:"requestId,omitempty"`
	PosterHash string `json:"posterHash"`

	Source   Source   `json:"source"`
	Metadata Metadata `json:"metadata"`

	Status Status `json:"status"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Storage StorageRef `json:"storage"`

	Result *Verdict     `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`

	Cache CacheInfo `json:"cache"`

	RetryCount           int   `json:"retryCount,omitempty"`
	ProcessingDurationMs int64 `json:"processingDurationMs,omitempty"`
}

// New builds a pending job record. Timestamps are stamped from now.
func New(jobID, requestID, posterHash string, src Source, meta Metadata, storage StorageRef, now time.Time) *Job {
	return &Job{
		JobID:      jobID,
		RequestID:  requestID,
		PosterHash: posterHash,
		Source:     src,
		Metadata:   meta,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		Storage:    storage,
		Cache: CacheInfo{
			PosterHash: posterHash,
			IsCacheHit: false,
		},
	}
}

// Start moves the job into PROCESSING. A job already in PROCESSING
// re-enters idempotently, re-stamping StartedAt: at-least-once delivery
// makes duplicate claims possible and they must not error.
func (j *Job) Start(now time.Time) error {
	if !CanTransition(j.Status, StatusProcessing) {
		return transitionErr(j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Complete moves the job into COMPLETED. A verdict is structurally
// required: a completed job without a result is not representable.
func (j *Job) Complete(result *Verdict, durationMs int64, now time.Time) error {
	if result == nil {
		return fmt.Errorf("complete job %s: %w", j.JobID, ErrMissingResult)
	}
	if !CanTransition(j.Status, StatusCompleted) {
		return transitionErr(j.Status, StatusCompleted)
	}
	j.Status = StatusCompleted
	j.Result = result
	j.ProcessingDurationMs = durationMs
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail moves the job into FAILED with the given error detail.
func (j *Job) Fail(code, message string, now time.Time) error {
	if !CanTransition(j.Status, StatusFailed) {
		return transitionErr(j.Status, StatusFailed)
	}
	j.Status = StatusFailed
	j.Error = &ErrorDetail{Code: code, Message: message}
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("transition %s -> %s: %w", from, to, ErrInvalidTransition)
}
