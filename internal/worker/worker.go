// Package worker pulls job messages from the work queue and drives each
// job through its state machine: claim, fetch staged bytes, evaluate,
// persist the outcome. The worker never retries in-process; a failure is
// persisted onto the job and reported to the queue harness, which leaves
// the message unacknowledged so the queue's redelivery and dead-letter
// policy governs retries.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safeart/postercheck/internal/blobstore"
	"github.com/safeart/postercheck/internal/jobstore"
	"github.com/safeart/postercheck/internal/moderation"
	"github.com/safeart/postercheck/internal/workqueue"
)

// Config holds worker configuration and injected collaborators.
type Config struct {
	Logger      *slog.Logger
	Store       jobstore.Store
	Queue       workqueue.Queue
	Blobs       blobstore.Store
	Evaluator   moderation.Evaluator
	Concurrency int
	PollWait    time.Duration
	JobTimeout  time.Duration
}

// Worker is a pool of independent consumers, each processing exactly one
// message at a time.
type Worker struct {
	logger    *slog.Logger
	store     jobstore.Store
	queue     workqueue.Queue
	blobs     blobstore.Store
	evaluator moderation.Evaluator

	concurrency int
	pollWait    time.Duration
	jobTimeout  time.Duration
	workerID    string

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewWorker creates a worker pool instance.
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pollWait := cfg.PollWait
	if pollWait <= 0 {
		pollWait = 5 * time.Second
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	return &Worker{
		logger:      cfg.Logger,
		store:       cfg.Store,
		queue:       cfg.Queue,
		blobs:       cfg.Blobs,
		evaluator:   cfg.Evaluator,
		concurrency: concurrency,
		pollWait:    pollWait,
		jobTimeout:  jobTimeout,
		workerID:    "worker-" + uuid.NewString()[:8],
		stopChan:    make(chan struct{}),
	}
}

// Start spawns the pool and blocks until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	w.spawnWorkerPool(ctx)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop gracefully stops the pool, waiting for in-flight messages.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...",
		slog.String("worker_id", w.workerID),
	)
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
