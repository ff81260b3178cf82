package crawler

import (
	"context"

	"github.com/safeart/postercheck/internal/job"
)

// StaticSource serves a fixed poster list. It backs feed-driven crawls
// where the catalog is supplied out of band, and tests.
type StaticSource struct {
	platform job.Platform
	posters  []DiscoveredPoster
}

// NewStaticSource creates a source for the given platform and posters.
func NewStaticSource(platform job.Platform, posters []DiscoveredPoster) *StaticSource {
	return &StaticSource{platform: platform, posters: posters}
}

func (s *StaticSource) Platform() job.Platform {
	return s.platform
}

func (s *StaticSource) Discover(_ context.Context) ([]DiscoveredPoster, error) {
	out := make([]DiscoveredPoster, len(s.posters))
	copy(out, s.posters)
	return out, nil
}
