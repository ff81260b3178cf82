package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/safeart/postercheck/internal/job"
)

// posterImgPattern matches catalog <img> tags and captures the source
// URL and alt text. Catalog markup is shallow enough that a full HTML
// parse buys nothing here.
var posterImgPattern = regexp.MustCompile(`<img[^>]+src="([^"]+)"[^>]*alt="([^"]*)"`)

// NetflixSource discovers posters from Netflix catalog pages.
type NetflixSource struct {
	client *http.Client
	pages  []string
}

// NewNetflixSource creates a source over the given catalog pages. With
// no pages it falls back to the public browse page.
func NewNetflixSource(pages []string, timeout time.Duration) *NetflixSource {
	if len(pages) == 0 {
		pages = []string{"https://www.netflix.com/browse"}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NetflixSource{
		client: &http.Client{Timeout: timeout},
		pages:  pages,
	}
}

func (s *NetflixSource) Platform() job.Platform {
	return job.PlatformNetflix
}

// Discover fetches each catalog page and extracts poster candidates.
// A page that cannot be fetched is skipped; discovery is best effort.
func (s *NetflixSource) Discover(ctx context.Context) ([]DiscoveredPoster, error) {
	var posters []DiscoveredPoster
	seen := make(map[string]bool)

	for _, page := range s.pages {
		body, err := s.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return posters, ctx.Err()
			}
			continue
		}

		for _, match := range posterImgPattern.FindAllStringSubmatch(body, -1) {
			posterURL, alt := match[1], match[2]
			if seen[posterURL] {
				continue
			}
			seen[posterURL] = true
			posters = append(posters, DiscoveredPoster{
				PosterURL: posterURL,
				PageURL:   page,
				Metadata:  extractMetadata(alt),
			})
		}
	}
	return posters, nil
}

func (s *NetflixSource) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catalog page %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractMetadata builds poster metadata from the image alt text. Alt
// text is the only attribute reliably present on catalog tiles; richer
// extraction needs the title detail page.
func extractMetadata(alt string) job.Metadata {
	title := alt
	if title == "" {
		title = "Unknown Title"
	}
	return job.Metadata{Title: title}
}
