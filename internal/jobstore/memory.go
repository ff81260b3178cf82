package jobstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/safeart/postercheck/internal/job"
)

// Memory is an in-process Store with the same conditional-write semantics
// as the Postgres implementation. It backs tests and the crawler's dry-run
// mode; nothing about it is shared global state, so each test constructs
// and discards its own instance.
type Memory struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
	seq  map[string]int // creation order per job ID, for tie-breaking
	next int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs: make(map[string]*job.Job),
		seq:  make(map[string]int),
	}
}

func (s *Memory) Create(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.JobID]; exists {
		return job.ErrAlreadyExists
	}
	s.jobs[j.JobID] = cloneJob(j)
	s.next++
	s.seq[j.JobID] = s.next
	return nil
}

func (s *Memory) Get(_ context.Context, jobID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, job.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *Memory) FindByFingerprint(_ context.Context, posterHash string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *job.Job
	for _, j := range s.jobs {
		if j.PosterHash != posterHash {
			continue
		}
		if found == nil || s.seq[j.JobID] > s.seq[found.JobID] {
			found = j
		}
	}
	if found == nil {
		return nil, job.ErrNotFound
	}
	return cloneJob(found), nil
}

func (s *Memory) UpdateStatus(_ context.Context, jobID string, to job.Status, up Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return job.ErrNotFound
	}
	if !job.CanTransition(j.Status, to) {
		return fmt.Errorf("transition %s -> %s: %w", j.Status, to, job.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	j.Status = to
	j.UpdatedAt = now
	if up.StartedAt != nil {
		t := *up.StartedAt
		j.StartedAt = &t
	}
	if up.CompletedAt != nil {
		t := *up.CompletedAt
		j.CompletedAt = &t
	}
	if up.Result != nil {
		r := *up.Result
		j.Result = &r
	}
	if up.Error != nil {
		e := *up.Error
		j.Error = &e
	}
	if up.ProcessingDurationMs != nil {
		j.ProcessingDurationMs = *up.ProcessingDurationMs
	}
	if up.RetryCount != nil {
		j.RetryCount = *up.RetryCount
	}
	return nil
}

func (s *Memory) List(_ context.Context, f Filter) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []job.Job
	for _, j := range s.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Platform != "" && j.Source.Platform != f.Platform {
			continue
		}
		jobs = append(jobs, *cloneJob(j))
	}

	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		}
		return jobs[a].JobID > jobs[b].JobID
	})

	if f.Cursor != nil {
		trimmed := jobs[:0]
		for _, j := range jobs {
			if j.CreatedAt.Before(f.Cursor.CreatedAt) ||
				(j.CreatedAt.Equal(f.Cursor.CreatedAt) && j.JobID < f.Cursor.JobID) {
				trimmed = append(trimmed, j)
			}
		}
		jobs = trimmed
	}

	if f.PageSize > 0 && len(jobs) > f.PageSize+1 {
		jobs = jobs[:f.PageSize+1]
	}
	return jobs, nil
}

// Reset drops every record. Teardown hook for tests.
func (s *Memory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*job.Job)
	s.seq = make(map[string]int)
	s.next = 0
}

func cloneJob(j *job.Job) *job.Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}
