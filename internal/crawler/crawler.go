// Package crawler discovers posters on streaming platform catalogs and
// feeds them into the submission pipeline. Discovery is pluggable per
// platform; submission is rate limited so a large crawl cannot stampede
// the origin CDNs or the API.
package crawler

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/safeart/postercheck/internal/coordinator"
	"github.com/safeart/postercheck/internal/job"
)

// DiscoveredPoster is one poster found on a platform page.
type DiscoveredPoster struct {
	PosterURL string
	PageURL   string
	Metadata  job.Metadata
}

// Source discovers posters for a single platform.
type Source interface {
	Platform() job.Platform
	Discover(ctx context.Context) ([]DiscoveredPoster, error)
}

// Submitter accepts a poster submission. *coordinator.Coordinator
// satisfies it directly; a thin HTTP client can stand in when the
// crawler runs out of process.
type Submitter interface {
	Submit(ctx context.Context, req coordinator.Request) (*coordinator.Response, error)
}

// Results tallies one crawl cycle.
type Results struct {
	Discovered int
	Submitted  int
	Cached     int
	Skipped    int
	Errors     int
}

// Config holds crawler configuration and collaborators.
type Config struct {
	Source    Source
	Submitter Submitter
	Logger    *slog.Logger

	// MaxTitles bounds how many discovered posters are processed per
	// run; zero means no bound.
	MaxTitles int

	// SubmitRate is the sustained submissions-per-second ceiling; zero
	// disables limiting.
	SubmitRate float64
	Burst      int
}

// Crawler runs discovery for one platform and submits what it finds.
type Crawler struct {
	source    Source
	submitter Submitter
	logger    *slog.Logger
	maxTitles int
	limiter   *rate.Limiter
}

// New creates a Crawler.
func New(cfg *Config) *Crawler {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.SubmitRate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}
	return &Crawler{
		source:    cfg.Source,
		submitter: cfg.Submitter,
		logger:    cfg.Logger,
		maxTitles: cfg.MaxTitles,
		limiter:   limiter,
	}
}

// Run executes one complete crawl cycle: discover, bound, submit, tally.
func (c *Crawler) Run(ctx context.Context) (Results, error) {
	platform := c.source.Platform()
	c.logger.Info("Starting crawl",
		slog.String("platform", string(platform)),
	)

	posters, err := c.source.Discover(ctx)
	if err != nil {
		return Results{}, err
	}
	if c.maxTitles > 0 && len(posters) > c.maxTitles {
		posters = posters[:c.maxTitles]
	}

	results := Results{Discovered: len(posters)}
	for _, poster := range posters {
		if err := c.limiter.Wait(ctx); err != nil {
			return results, err
		}

		resp, err := c.submitter.Submit(ctx, coordinator.Request{
			Platform:  platform,
			PosterURL: poster.PosterURL,
			PageURL:   poster.PageURL,
			Metadata:  poster.Metadata,
		})
		if err != nil {
			c.logger.Error("Failed to submit discovered poster",
				slog.String("poster_url", poster.PosterURL),
				slog.String("error", err.Error()),
			)
			results.Errors++
			continue
		}

		switch {
		case resp.IsCacheHit:
			results.Cached++
		case resp.Status == job.StatusPending:
			results.Submitted++
		default:
			results.Skipped++
		}
	}

	c.logger.Info("Crawl completed",
		slog.String("platform", string(platform)),
		slog.Int("discovered", results.Discovered),
		slog.Int("submitted", results.Submitted),
		slog.Int("cached", results.Cached),
		slog.Int("skipped", results.Skipped),
		slog.Int("errors", results.Errors),
	)
	return results, nil
}
