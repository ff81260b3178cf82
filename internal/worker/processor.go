package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safeart/postercheck/internal/job"
	"github.com/safeart/postercheck/internal/jobstore"
	"github.com/safeart/postercheck/internal/workqueue"
)

// processMessage drives one job through its state machine. A nil return
// means the message may be acknowledged; any error means it must not be.
func (w *Worker) processMessage(ctx context.Context, msg workqueue.Message, deliveryCount int) error {
	start := time.Now()

	j, err := w.store.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return fmt.Errorf("job %s: %w", msg.JobID, job.ErrMissingJob)
		}
		return job.NewRetryableError(fmt.Errorf("load job %s: %w", msg.JobID, err))
	}

	// Duplicate delivery of an already-settled job: at-least-once delivery
	// makes this normal. A completed job's duplicate is dropped; a failed
	// job's message keeps burning its delivery budget so it lands in the
	// dead-letter sink for inspection while the record stays FAILED.
	if j.Status == job.StatusCompleted {
		w.logger.Info("Duplicate delivery for completed job, acknowledging",
			slog.String("job_id", j.JobID),
		)
		return nil
	}
	if j.Status == job.StatusFailed {
		w.logger.Warn("Redelivery for failed job, leaving for dead-letter routing",
			slog.String("job_id", j.JobID),
			slog.Int("delivery_count", deliveryCount),
		)
		return job.NewRetryableError(fmt.Errorf("job %s already failed", j.JobID))
	}

	now := time.Now().UTC()
	retries := deliveryCount - 1
	err = w.store.UpdateStatus(ctx, j.JobID, job.StatusProcessing, jobstore.Update{
		StartedAt:  &now,
		RetryCount: &retries,
	})
	if err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			// Lost a race with another delivery that already settled the
			// job between our read and write.
			return w.ackIfSettled(ctx, j.JobID, err)
		}
		return job.NewRetryableError(fmt.Errorf("claim job %s: %w", j.JobID, err))
	}

	data, err := w.blobs.Get(ctx, msg.StorageRef.Key)
	if err != nil {
		w.failJob(ctx, j.JobID, "BlobFetchError", err.Error())
		return job.NewRetryableError(fmt.Errorf("fetch staged bytes for job %s: %w", j.JobID, err))
	}

	evalCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	verdict, err := w.evaluator.Evaluate(evalCtx, data)
	cancel()
	if err != nil {
		w.failJob(ctx, j.JobID, "EvaluationError", err.Error())
		return job.NewRetryableError(fmt.Errorf("evaluate job %s: %w", j.JobID, err))
	}

	completedAt := time.Now().UTC()
	durationMs := time.Since(start).Milliseconds()
	err = w.store.UpdateStatus(ctx, j.JobID, job.StatusCompleted, jobstore.Update{
		CompletedAt:          &completedAt,
		Result:               verdict,
		ProcessingDurationMs: &durationMs,
	})
	if err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			return w.ackIfSettled(ctx, j.JobID, err)
		}
		return job.NewRetryableError(fmt.Errorf("persist verdict for job %s: %w", j.JobID, err))
	}

	w.logger.Info("Job completed",
		slog.String("job_id", j.JobID),
		slog.Int64("processing_duration_ms", durationMs),
		slog.Bool("compliant", verdict.IsCompliant),
	)
	return nil
}

// failJob persists the FAILED state before the failure is reported to the
// queue harness, so a job is never left stranded in PROCESSING by a
// failure the worker observed. Best effort: when even this write fails the
// message is still redelivered and a later attempt re-enters PROCESSING
// idempotently.
func (w *Worker) failJob(ctx context.Context, jobID, code, message string) {
	now := time.Now().UTC()
	err := w.store.UpdateStatus(ctx, jobID, job.StatusFailed, jobstore.Update{
		CompletedAt: &now,
		Error:       &job.ErrorDetail{Code: code, Message: message},
	})
	if err != nil {
		w.logger.Error("Failed to persist FAILED state",
			slog.String("job_id", jobID),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Warn("Job failed",
		slog.String("job_id", jobID),
		slog.String("code", code),
		slog.String("message", message),
	)
}

// ackIfSettled resolves a rejected transition: when a racing delivery has
// already completed the job the duplicate is acknowledged, otherwise the
// original rejection stands and the message is retried.
func (w *Worker) ackIfSettled(ctx context.Context, jobID string, cause error) error {
	current, err := w.store.Get(ctx, jobID)
	if err != nil {
		return job.NewRetryableError(fmt.Errorf("re-read job %s after rejected transition: %w", jobID, err))
	}
	if current.Status == job.StatusCompleted {
		w.logger.Info("Job completed by concurrent delivery, acknowledging",
			slog.String("job_id", jobID),
		)
		return nil
	}
	return job.NewRetryableError(cause)
}
