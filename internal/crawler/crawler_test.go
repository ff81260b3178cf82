package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeart/postercheck/internal/coordinator"
	"github.com/safeart/postercheck/internal/job"
)

type scriptedSubmitter struct {
	responses map[string]*coordinator.Response
	failURLs  map[string]bool
	requests  []coordinator.Request
}

func (s *scriptedSubmitter) Submit(_ context.Context, req coordinator.Request) (*coordinator.Response, error) {
	s.requests = append(s.requests, req)
	if s.failURLs[req.PosterURL] {
		return nil, errors.New("submission failed")
	}
	if resp, ok := s.responses[req.PosterURL]; ok {
		return resp, nil
	}
	return &coordinator.Response{
		JobID:   "job-" + req.PosterURL,
		Status:  job.StatusPending,
		Created: true,
	}, nil
}

func posters(n int) []DiscoveredPoster {
	out := make([]DiscoveredPoster, n)
	for i := range out {
		out[i] = DiscoveredPoster{
			PosterURL: fmt.Sprintf("https://img.example.com/p%d.jpg", i),
			PageURL:   "https://example.com/browse",
			Metadata:  job.Metadata{Title: fmt.Sprintf("Title %d", i)},
		}
	}
	return out
}

func TestCrawler_TalliesOutcomes(t *testing.T) {
	submitter := &scriptedSubmitter{
		responses: map[string]*coordinator.Response{
			"https://img.example.com/p1.jpg": {
				JobID:      "cached-job",
				Status:     job.StatusCached,
				IsCacheHit: true,
			},
			"https://img.example.com/p2.jpg": {
				JobID:  "in-progress-job",
				Status: job.StatusProcessing,
			},
		},
		failURLs: map[string]bool{
			"https://img.example.com/p3.jpg": true,
		},
	}
	c := New(&Config{
		Source:    NewStaticSource(job.PlatformNetflix, posters(4)),
		Submitter: submitter,
		Logger:    slog.New(slog.DiscardHandler),
	})

	results, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Results{
		Discovered: 4,
		Submitted:  1,
		Cached:     1,
		Skipped:    1,
		Errors:     1,
	}, results)

	require.Len(t, submitter.requests, 4)
	assert.Equal(t, job.PlatformNetflix, submitter.requests[0].Platform)
	assert.Equal(t, "Title 0", submitter.requests[0].Metadata.Title)
}

func TestCrawler_MaxTitlesBound(t *testing.T) {
	submitter := &scriptedSubmitter{}
	c := New(&Config{
		Source:    NewStaticSource(job.PlatformHulu, posters(10)),
		Submitter: submitter,
		Logger:    slog.New(slog.DiscardHandler),
		MaxTitles: 3,
	})

	results, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, results.Discovered)
	assert.Equal(t, 3, results.Submitted)
	assert.Len(t, submitter.requests, 3)
}

func TestCrawler_RateLimitRespectsContext(t *testing.T) {
	submitter := &scriptedSubmitter{}
	c := New(&Config{
		Source:     NewStaticSource(job.PlatformNetflix, posters(50)),
		Submitter:  submitter,
		Logger:     slog.New(slog.DiscardHandler),
		SubmitRate: 1, // one per second, far slower than the test budget
		Burst:      1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results, err := c.Run(ctx)
	require.Error(t, err)
	// The burst allowance lets roughly one submission through before
	// the deadline stops the run.
	assert.LessOrEqual(t, results.Submitted, 2)
	assert.Less(t, len(submitter.requests), 50)
}

func TestNetflixSource_DiscoverExtractsPosters(t *testing.T) {
	page := `<html><body>
		<img src="https://img.example.com/a.jpg" alt="First Show">
		<img src="https://img.example.com/b.jpg" alt="Second Show">
		<img src="https://img.example.com/a.jpg" alt="First Show">
		<img src="https://img.example.com/c.jpg" alt="">
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	src := NewNetflixSource([]string{srv.URL + "/browse"}, time.Second)
	found, err := src.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, found, 3)
	assert.Equal(t, "https://img.example.com/a.jpg", found[0].PosterURL)
	assert.Equal(t, "First Show", found[0].Metadata.Title)
	assert.Equal(t, srv.URL+"/browse", found[0].PageURL)
	assert.Equal(t, "Unknown Title", found[2].Metadata.Title)
}

func TestNetflixSource_SkipsUnreachablePages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`<img src="https://img.example.com/a.jpg" alt="Only Show">`))
	}))
	defer srv.Close()

	src := NewNetflixSource([]string{srv.URL + "/down", srv.URL + "/up"}, time.Second)
	found, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Only Show", found[0].Metadata.Title)
}
