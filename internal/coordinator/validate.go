package coordinator

import "net/url"

// Validate checks a submission request and returns the list of problems.
// An empty list means the request is acceptable. Validation has no side
// effects; nothing is fetched, stored, or enqueued on failure.
func Validate(req Request) []string {
	var problems []string

	if !req.Platform.Valid() {
		problems = append(problems, "invalid or missing platform")
	}

	if req.PosterURL == "" {
		problems = append(problems, "invalid or missing posterUrl")
	} else if !isValidURL(req.PosterURL) {
		problems = append(problems, "posterUrl must be a valid URL")
	}

	if req.Metadata.Title == "" {
		problems = append(problems, "missing required metadata.title")
	}

	if req.PageURL != "" && !isValidURL(req.PageURL) {
		problems = append(problems, "pageUrl must be a valid URL if provided")
	}

	return problems
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
