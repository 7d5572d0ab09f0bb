// Package catalog talks to the streaming catalog: track searches and
// playlist management, with pacing, retries and rate-limit handling.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/csmith/cratesync/model"
	"golang.org/x/time/rate"
)

// BatchSize is the maximum number of items sent in one playlist mutation.
const BatchSize = 100

// Backend performs single, unretried catalog API calls
type Backend interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]model.Candidate, error)
	CurrentUser(ctx context.Context) (string, error)
	CreatePlaylist(ctx context.Context, user, name, description string) (string, error)
	PlaylistName(ctx context.Context, id string) (string, error)
	PlaylistItems(ctx context.Context, id string) ([]string, error)
	AddItems(ctx context.Context, id string, uris []string) error
	RemoveItems(ctx context.Context, id string, uris []string) error
	ReplaceItems(ctx context.Context, id string, uris []string) error
	RenamePlaylist(ctx context.Context, id, name string) error
}

// Client wraps a Backend with pacing, bounded retries for transient
// failures, and the rate-limit policy.
type Client struct {
	Backend Backend
	Limiter *rate.Limiter

	// MaxRateLimitWait is the longest Retry-After we'll sleep through. Longer
	// requests abort with a RateLimitExceededError.
	MaxRateLimitWait time.Duration

	// Attempts is the number of tries for calls failing with server errors
	// or transport failures. Backoff grows linearly with each failure.
	Attempts int
	Backoff  time.Duration

	// Sleep waits for the given duration; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	userMutex sync.Mutex
	user      string
}

// NewClient creates a client with the default policy
func NewClient(backend Backend) *Client {
	return &Client{
		Backend:          backend,
		Limiter:          rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		MaxRateLimitWait: 60 * time.Second,
		Attempts:         3,
		Backoff:          2 * time.Second,
		Sleep:            sleepContext,
	}
}

// Search runs a single track search
func (c *Client) Search(ctx context.Context, query Query, limit int) ([]model.Candidate, error) {
	var candidates []model.Candidate
	err := c.call(ctx, "search", func(ctx context.Context) error {
		var err error
		candidates, err = c.Backend.SearchTracks(ctx, query.String(), limit)
		return err
	})
	return candidates, err
}

// CreatePlaylist creates a private playlist owned by the current user and
// returns its ID
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	user, err := c.currentUser(ctx)
	if err != nil {
		return "", err
	}

	var id string
	err = c.call(ctx, "create playlist", func(ctx context.Context) error {
		var err error
		id, err = c.Backend.CreatePlaylist(ctx, user, name, description)
		return err
	})
	return id, err
}

// PlaylistName returns the current name of a playlist, or ErrNotFound if it
// no longer exists
func (c *Client) PlaylistName(ctx context.Context, id string) (string, error) {
	var name string
	err := c.call(ctx, "get playlist", func(ctx context.Context) error {
		var err error
		name, err = c.Backend.PlaylistName(ctx, id)
		return err
	})
	return name, err
}

// RenamePlaylist changes the name of a playlist
func (c *Client) RenamePlaylist(ctx context.Context, id, name string) error {
	return c.call(ctx, "rename playlist", func(ctx context.Context) error {
		return c.Backend.RenamePlaylist(ctx, id, name)
	})
}

// PlaylistItems returns the URIs of every track in a playlist
func (c *Client) PlaylistItems(ctx context.Context, id string) ([]string, error) {
	var uris []string
	err := c.call(ctx, "get playlist items", func(ctx context.Context) error {
		var err error
		uris, err = c.Backend.PlaylistItems(ctx, id)
		return err
	})
	return uris, err
}

// AddItems appends tracks to a playlist in batches
func (c *Client) AddItems(ctx context.Context, id string, uris []string) error {
	for _, batch := range batches(uris) {
		if err := c.call(ctx, "add items", func(ctx context.Context) error {
			return c.Backend.AddItems(ctx, id, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

// RemoveItems removes every occurrence of the given tracks from a playlist
func (c *Client) RemoveItems(ctx context.Context, id string, uris []string) error {
	for _, batch := range batches(uris) {
		if err := c.call(ctx, "remove items", func(ctx context.Context) error {
			return c.Backend.RemoveItems(ctx, id, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceItems sets the full contents of a playlist. The first batch
// replaces, and the rest are appended.
func (c *Client) ReplaceItems(ctx context.Context, id string, uris []string) error {
	all := batches(uris)
	first := []string{}
	if len(all) > 0 {
		first = all[0]
	}

	if err := c.call(ctx, "replace items", func(ctx context.Context) error {
		return c.Backend.ReplaceItems(ctx, id, first)
	}); err != nil {
		return err
	}

	if len(all) > 1 {
		return c.AddItems(ctx, id, uris[BatchSize:])
	}
	return nil
}

func (c *Client) currentUser(ctx context.Context) (string, error) {
	c.userMutex.Lock()
	defer c.userMutex.Unlock()

	if c.user != "" {
		return c.user, nil
	}

	err := c.call(ctx, "current user", func(ctx context.Context) error {
		var err error
		c.user, err = c.Backend.CurrentUser(ctx)
		return err
	})
	return c.user, err
}

// call runs fn under the client's policy. A short rate limit is slept
// through once; a long one, or any second one within the same call, aborts. Server errors and
// transport failures are retried up to Attempts times.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	rateLimited := false
	failures := 0

	for {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		var retryAfter *RetryAfterError
		if errors.As(err, &retryAfter) {
			wait := max(retryAfter.RetryAfter, time.Second)
			if rateLimited || wait > c.MaxRateLimitWait {
				return &RateLimitExceededError{RetryAfter: wait}
			}

			rateLimited = true
			slog.Warn("Rate limited by catalog, waiting", "operation", op, "wait", wait)
			if err := c.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		var status *StatusError
		if errors.As(err, &status) && status.StatusCode < 500 {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		if !transient(err) {
			return fmt.Errorf("%s: %w", op, err)
		}

		failures++
		if failures >= c.Attempts {
			return fmt.Errorf("%s: %w after %d attempts: %v", op, ErrUnavailable, failures, err)
		}

		slog.Warn("Catalog request failed, retrying", "operation", op, "attempt", failures, "error", err)
		if err := c.Sleep(ctx, time.Duration(failures)*c.Backoff); err != nil {
			return err
		}
	}
}

// transient reports whether an error is a server error or a failure to
// reach the server at all
func transient(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func batches(uris []string) [][]string {
	var res [][]string
	for i := 0; i < len(uris); i += BatchSize {
		res = append(res, uris[i:min(i+BatchSize, len(uris))])
	}
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
