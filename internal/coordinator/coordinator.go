// Package coordinator implements content-addressed, idempotent job
// submission with cache short-circuiting.
//
// Submission order matters: validate, fetch, fingerprint, cache lookup,
// then blob put, conditional create, and finally enqueue. Enqueue is last
// specifically so no queue message can exist without a corresponding job
// record. The job store's conditional create is the single point of truth
// for the dedup race: losing it is a normal outcome, answered by returning
// the winner's job.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/safeart/postercheck/internal/blobstore"
	"github.com/safeart/postercheck/internal/fingerprint"
	"github.com/safeart/postercheck/internal/job"
	"github.com/safeart/postercheck/internal/jobstore"
	"github.com/safeart/postercheck/internal/workqueue"
)

// Request is a poster submission.
type Request struct {
	RequestID string       `json:"requestId,omitempty"`
	Platform  job.Platform `json:"platform"`
	PosterURL string       `json:"posterUrl"`
	PageURL   string       `json:"pageUrl,omitempty"`
	Metadata  job.Metadata `json:"metadata"`
}

// Response is the definitive submission outcome: created, cached, or
// idempotent replay.
type Response struct {
	JobID           string     `json:"jobId"`
	Status          job.Status `json:"status"`
	IsCacheHit      bool       `json:"isCacheHit"`
	CachedFromJobID string     `json:"cachedFromJobId,omitempty"`
	Message         string     `json:"message"`

	// Created is true only when this submission created the job, as
	// opposed to a cache hit, an idempotent replay, or a lost race.
	Created bool `json:"-"`
}

// Config holds the injected collaborators. Nothing here is ambient
// process state; tests construct a coordinator per case and throw it away.
type Config struct {
	Store   jobstore.Store
	Queue   workqueue.Queue
	Blobs   blobstore.Store
	Fetcher Fetcher
	Logger  *slog.Logger
	Now     func() time.Time
}

// Coordinator deduplicates submissions and routes new content into the
// processing pipeline.
type Coordinator struct {
	store   jobstore.Store
	queue   workqueue.Queue
	blobs   blobstore.Store
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Coordinator.
func New(cfg *Config) *Coordinator {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0, 0)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		store:   cfg.Store,
		queue:   cfg.Queue,
		blobs:   cfg.Blobs,
		fetcher: fetcher,
		logger:  cfg.Logger,
		now:     now,
	}
}

// Submit runs the dedup submission flow. Any step failure aborts the
// submission without partial job or queue state.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*Response, error) {
	if problems := Validate(req); len(problems) > 0 {
		return nil, job.NewValidationError(problems)
	}

	c.logger.Info("Fetching poster from origin",
		slog.String("url", req.PosterURL),
		slog.String("platform", string(req.Platform)),
	)
	data, err := c.fetcher.Fetch(ctx, req.PosterURL)
	if err != nil {
		return nil, &job.OriginFetchError{URL: req.PosterURL, Err: err}
	}

	hash := fingerprint.Hash(data)
	jobID := fingerprint.JobID(string(req.Platform), hash)

	existing, err := c.store.FindByFingerprint(ctx, hash)
	if err != nil && !errors.Is(err, job.ErrNotFound) {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	if existing != nil {
		if existing.Status == job.StatusCompleted && existing.Result != nil {
			c.logger.Info("Cache hit for poster",
				slog.String("poster_hash", hash),
				slog.String("cached_job_id", existing.JobID),
			)
			return &Response{
				JobID:           existing.JobID,
				Status:          job.StatusCached,
				IsCacheHit:      true,
				CachedFromJobID: existing.JobID,
				Message:         "Job result retrieved from cache",
			}, nil
		}

		if req.RequestID != "" && existing.RequestID == req.RequestID {
			return &Response{
				JobID:      existing.JobID,
				Status:     existing.Status,
				IsCacheHit: false,
				Message:    "Job already exists with same requestId",
			}, nil
		}
	}

	key := blobKey(req.Platform, hash)
	if err := c.blobs.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("stage poster bytes: %w", err)
	}

	now := c.now()
	newJob := job.New(jobID, req.RequestID, hash,
		job.Source{
			Platform:     req.Platform,
			URL:          req.PosterURL,
			PageURL:      req.PageURL,
			DiscoveredAt: now,
		},
		req.Metadata,
		job.StorageRef{Bucket: c.blobs.Bucket(), Key: key},
		now,
	)

	if err := c.store.Create(ctx, newJob); err != nil {
		if errors.Is(err, job.ErrAlreadyExists) {
			// Lost the create race to a concurrent submission of the same
			// content. The winner's job is the answer, not an error.
			winner, getErr := c.store.Get(ctx, jobID)
			if getErr != nil {
				return nil, fmt.Errorf("read winning job after lost create race: %w", getErr)
			}
			c.logger.Info("Concurrent submission already created job",
				slog.String("job_id", jobID),
			)
			return &Response{
				JobID:      winner.JobID,
				Status:     winner.Status,
				IsCacheHit: false,
				Message:    "Job already in progress",
			}, nil
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	msg := workqueue.Message{
		JobID:       jobID,
		StorageRef:  newJob.Storage,
		Fingerprint: hash,
	}
	if err := c.queue.Enqueue(ctx, msg); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", jobID, err)
	}

	c.logger.Info("Job created and queued",
		slog.String("job_id", jobID),
		slog.String("poster_hash", hash),
	)

	return &Response{
		JobID:      jobID,
		Status:     job.StatusPending,
		IsCacheHit: false,
		Message:    "Job created and queued for processing",
		Created:    true,
	}, nil
}

// blobKey lays out staged posters by platform and hash prefix, mirroring
// the bucket layout the workers expect.
func blobKey(platform job.Platform, hash string) string {
	return fmt.Sprintf("posters/%s/%s/%s.jpg", strings.ToLower(string(platform)), hash[:2], hash)
}
