package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeart/postercheck/internal/blobstore"
	"github.com/safeart/postercheck/internal/fingerprint"
	"github.com/safeart/postercheck/internal/job"
	"github.com/safeart/postercheck/internal/jobstore"
	"github.com/safeart/postercheck/internal/workqueue"
)

type fixture struct {
	coordinator *Coordinator
	store       *jobstore.Memory
	queue       *workqueue.Memory
	blobs       *blobstore.Memory
	origin      *httptest.Server
	posterURL   string
}

func newFixture(t *testing.T, posterBody []byte) *fixture {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/poster.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(posterBody)
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	origin := httptest.NewServer(mux)
	t.Cleanup(origin.Close)

	store := jobstore.NewMemory()
	queue := workqueue.NewMemory(time.Minute, 3)
	blobs := blobstore.NewMemory("posters")

	c := New(&Config{
		Store:   store,
		Queue:   queue,
		Blobs:   blobs,
		Fetcher: NewHTTPFetcher(time.Second, 1<<20),
		Logger:  slog.New(slog.DiscardHandler),
	})

	return &fixture{
		coordinator: c,
		store:       store,
		queue:       queue,
		blobs:       blobs,
		origin:      origin,
		posterURL:   origin.URL + "/poster.jpg",
	}
}

func validRequest(posterURL string) Request {
	return Request{
		Platform:  job.PlatformNetflix,
		PosterURL: posterURL,
		Metadata:  job.Metadata{Title: "X"},
	}
}

func TestSubmit_CreatesJobAndEnqueues(t *testing.T) {
	ctx := context.Background()
	body := []byte("poster bytes")
	f := newFixture(t, body)

	resp, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err)

	hash := fingerprint.Hash(body)
	wantID := fingerprint.JobID("NETFLIX", hash)

	assert.Equal(t, wantID, resp.JobID)
	assert.Equal(t, job.StatusPending, resp.Status)
	assert.False(t, resp.IsCacheHit)

	created, err := f.store.Get(ctx, wantID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, created.Status)
	assert.Equal(t, hash, created.PosterHash)
	assert.Equal(t, "posters", created.Storage.Bucket)
	assert.Equal(t, "posters/netflix/"+hash[:2]+"/"+hash+".jpg", created.Storage.Key)

	staged, err := f.blobs.Get(ctx, created.Storage.Key)
	require.NoError(t, err)
	assert.Equal(t, body, staged)

	ds, err := f.queue.Receive(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, wantID, ds[0].Message.JobID)
	assert.Equal(t, hash, ds[0].Message.Fingerprint)
	assert.Equal(t, created.Storage, ds[0].Message.StorageRef)
}

func TestSubmit_ValidationFailureHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte("poster bytes"))

	tests := []struct {
		name    string
		mutate  func(*Request)
		problem string
	}{
		{"missing platform", func(r *Request) { r.Platform = "" }, "platform"},
		{"unknown platform", func(r *Request) { r.Platform = "MYSPACE" }, "platform"},
		{"missing posterUrl", func(r *Request) { r.PosterURL = "" }, "posterUrl"},
		{"relative posterUrl", func(r *Request) { r.PosterURL = "not-a-url" }, "posterUrl"},
		{"missing title", func(r *Request) { r.Metadata.Title = "" }, "metadata.title"},
		{"bad pageUrl", func(r *Request) { r.PageURL = "::bad::" }, "pageUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(f.posterURL)
			tt.mutate(&req)

			_, err := f.coordinator.Submit(ctx, req)
			var verr *job.ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Problems)
			assert.Contains(t, verr.Problems[0], tt.problem)

			assert.Equal(t, 0, f.blobs.Len())
			assert.Equal(t, 0, f.queue.Depth())
		})
	}
}

// Scenario: two submissions of identical content with no intervening
// processing resolve to the same job with no duplicate record.
func TestSubmit_DuplicateBeforeProcessing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte("poster bytes"))

	first, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err)
	assert.False(t, first.IsCacheHit)

	second, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.False(t, second.IsCacheHit)
	assert.Equal(t, job.StatusPending, second.Status)

	jobs, err := f.store.List(ctx, jobstore.Filter{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	// Exactly one queue message exists for the job.
	assert.Equal(t, 1, f.queue.Depth())
}

// Scenario: identical content after a completed job returns the cached
// verdict with no new writes.
func TestSubmit_CacheHitAfterCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte("poster bytes"))

	first, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.store.UpdateStatus(ctx, first.JobID, job.StatusProcessing, jobstore.Update{StartedAt: &now}))
	require.NoError(t, f.store.UpdateStatus(ctx, first.JobID, job.StatusCompleted, jobstore.Update{
		CompletedAt: &now,
		Result:      &job.Verdict{IsCompliant: true, ProcessedAt: now},
	}))

	// Drain the first submission's message so queue growth is observable.
	ds, err := f.queue.Receive(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	require.NoError(t, ds[0].Ack(ctx))

	resp, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err)
	assert.True(t, resp.IsCacheHit)
	assert.Equal(t, job.StatusCached, resp.Status)
	assert.Equal(t, first.JobID, resp.CachedFromJobID)

	// No new job record, no new queue message, and the reused record
	// keeps its own terminal status.
	jobs, err := f.store.List(ctx, jobstore.Filter{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.StatusCompleted, jobs[0].Status)
	assert.Equal(t, 0, f.queue.Depth())
}

func TestSubmit_IdempotentReplayByRequestID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte("poster bytes"))

	req := validRequest(f.posterURL)
	req.RequestID = "req-42"

	first, err := f.coordinator.Submit(ctx, req)
	require.NoError(t, err)

	second, err := f.coordinator.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.False(t, second.IsCacheHit)
	assert.Contains(t, second.Message, "requestId")

	jobs, err := f.store.List(ctx, jobstore.Filter{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, 1, f.queue.Depth())
}

// Scenario: unreachable origin fails the submission with no job and no
// queue message.
func TestSubmit_OriginFetchFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte("poster bytes"))

	req := validRequest(f.origin.URL + "/missing.jpg")
	_, err := f.coordinator.Submit(ctx, req)

	var ferr *job.OriginFetchError
	require.ErrorAs(t, err, &ferr)

	jobs, listErr := f.store.List(ctx, jobstore.Filter{PageSize: 10})
	require.NoError(t, listErr)
	assert.Empty(t, jobs)
	assert.Equal(t, 0, f.queue.Depth())
	assert.Equal(t, 0, f.blobs.Len())
}

func TestSubmit_LostCreateRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	body := []byte("poster bytes")
	f := newFixture(t, body)

	// Pre-create the winner under the deterministic ID but with a
	// different fingerprint index entry, so the fingerprint lookup misses
	// and Submit goes all the way to the conditional create.
	hash := fingerprint.Hash(body)
	jobID := fingerprint.JobID("NETFLIX", hash)
	now := time.Now().UTC()
	winner := job.New(jobID, "", "different-hash",
		job.Source{Platform: job.PlatformNetflix, URL: f.posterURL, DiscoveredAt: now},
		job.Metadata{Title: "X"},
		job.StorageRef{Bucket: "posters", Key: "posters/netflix/xx/x.jpg"},
		now,
	)
	require.NoError(t, f.store.Create(ctx, winner))

	resp, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err, "losing the create race must not surface as an error")
	assert.Equal(t, jobID, resp.JobID)
	assert.False(t, resp.IsCacheHit)

	// The loser did not enqueue.
	assert.Equal(t, 0, f.queue.Depth())
}

func TestSubmit_EmptyPosterIsValidContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte{})

	resp, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
	require.NoError(t, err)
	assert.Equal(t, fingerprint.JobID("NETFLIX", fingerprint.Hash(nil)), resp.JobID)
}

func TestSubmit_ConcurrentIdenticalSubmissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []byte("poster bytes"))

	const n = 8
	results := make(chan *Response, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			resp, err := f.coordinator.Submit(ctx, validRequest(f.posterURL))
			if err != nil {
				errs <- err
				return
			}
			results <- resp
		}()
	}

	var created int
	seen := map[string]struct{}{}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("concurrent submit failed: %v", err)
		case resp := <-results:
			seen[resp.JobID] = struct{}{}
			if resp.Message == "Job created and queued for processing" {
				created++
			}
		}
	}

	assert.Len(t, seen, 1, "all submissions resolve to one job")
	assert.Equal(t, 1, created, "exactly one submission wins the create")

	jobs, err := f.store.List(ctx, jobstore.Filter{PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestSubmit_EnqueueFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	body := []byte("poster bytes")

	mux := http.NewServeMux()
	mux.HandleFunc("/poster.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})
	origin := httptest.NewServer(mux)
	t.Cleanup(origin.Close)

	store := jobstore.NewMemory()
	c := New(&Config{
		Store:   store,
		Queue:   failingQueue{},
		Blobs:   blobstore.NewMemory("posters"),
		Fetcher: NewHTTPFetcher(time.Second, 1<<20),
		Logger:  slog.New(slog.DiscardHandler),
	})

	_, err := c.Submit(ctx, validRequest(origin.URL+"/poster.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue")
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, workqueue.Message) error {
	return errors.New("broker unavailable")
}

func (failingQueue) Receive(context.Context, time.Duration) ([]workqueue.Delivery, error) {
	return nil, nil
}
