package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUnavailable is returned when the catalog keeps failing after all
	// retry attempts have been used.
	ErrUnavailable = errors.New("catalog unavailable")

	// ErrNotFound is returned when a playlist no longer exists.
	ErrNotFound = errors.New("not found")
)

// RateLimitExceededError is returned when the catalog asks us to back off for
// longer than we're willing to wait, or rate limits us twice in a row. It
// should abort the run.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("catalog rate limit exceeded, retry after %s", e.Wait())
}

// Wait returns the requested back-off in a human-friendly form such as
// "45s", "2m 5s" or "1h 2m".
func (e *RateLimitExceededError) Wait() string {
	seconds := int(e.RetryAfter / time.Second)
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	case seconds >= 60:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// RetryAfterError is produced for a single 429 response.
type RetryAfterError struct {
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// StatusError is produced for responses that the catalog client handles
// itself rather than leaving to the API library: missing resources and
// server errors.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
