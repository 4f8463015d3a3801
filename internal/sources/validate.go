package sources

import (
	"context"
	"net/http"
	"time"
)

const validateTimeout = 15 * time.Second

// FeedCheck is the result of probing one RSS feed URL.
type FeedCheck struct {
	Name   string
	URL    string
	Alive  bool
	Status int
	Reason string
}

// ValidateFeeds probes each feed URL with a GET and reports liveness.
// Redirects are followed; any status below 400 counts as alive.
func ValidateFeeds(ctx context.Context, feeds []FeedConfig) []FeedCheck {
	client := &http.Client{Timeout: validateTimeout}

	checks := make([]FeedCheck, 0, len(feeds))

	for _, feed := range feeds {
		check := FeedCheck{Name: feed.Name, URL: feed.URL}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
		if err != nil {
			check.Reason = err.Error()
			checks = append(checks, check)

			continue
		}

		req.Header.Set(headerUserAgent, defaultUserAgent)

		resp, err := client.Do(req)
		if err != nil {
			check.Reason = err.Error()
			checks = append(checks, check)

			continue
		}

		_ = resp.Body.Close()

		check.Status = resp.StatusCode
		check.Alive = resp.StatusCode < http.StatusBadRequest

		checks = append(checks, check)
	}

	return checks
}
