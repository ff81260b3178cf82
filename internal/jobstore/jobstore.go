// Package jobstore provides the durable keyed record store for jobs, with
// a secondary lookup by fingerprint and compare-and-set status updates.
//
// Create is conditional on absence of the job ID: the store, not the
// caller, is the authority that prevents two concurrent submissions of the
// same content from producing two live jobs. UpdateStatus is guarded by
// the set of legal source statuses for the requested transition, so a
// terminal state can never be regressed regardless of caller interleaving.
package jobstore

import (
	"context"
	"time"

	"github.com/safeart/postercheck/internal/job"
)

// Update carries the optional fields set alongside a status transition.
// Nil fields are left untouched.
type Update struct {
	StartedAt            *time.Time
	CompletedAt          *time.Time
	Result               *job.Verdict
	Error                *job.ErrorDetail
	ProcessingDurationMs *int64
	RetryCount           *int
}

// Cursor is an opaque pagination position over (created_at, job_id).
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// Filter narrows a List call.
type Filter struct {
	Status   job.Status
	Platform job.Platform
	PageSize int
	Cursor   *Cursor
}

// Store is the job record store.
type Store interface {
	// Create inserts the job, conditional on absence of its job ID.
	// Returns job.ErrAlreadyExists when the ID is taken.
	Create(ctx context.Context, j *job.Job) error

	// Get returns the job or job.ErrNotFound.
	Get(ctx context.Context, jobID string) (*job.Job, error)

	// FindByFingerprint returns the most recently created job with the
	// given poster hash, or job.ErrNotFound when none exists.
	FindByFingerprint(ctx context.Context, posterHash string) (*job.Job, error)

	// UpdateStatus applies a status transition with the given field
	// updates. The write succeeds only when the job's current status is a
	// legal source for the transition; otherwise job.ErrInvalidTransition
	// is returned (job.ErrNotFound when no record exists at all).
	UpdateStatus(ctx context.Context, jobID string, to job.Status, up Update) error

	// List returns jobs matching the filter, newest first, fetching one
	// row past PageSize so callers can detect a next page.
	List(ctx context.Context, f Filter) ([]job.Job, error)
}
