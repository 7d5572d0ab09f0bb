package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeBackend struct {
	searchErrors []error
	searches     []string

	calls     map[string][][]string
	playlists map[string]string
	nextID    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:     make(map[string][][]string),
		playlists: make(map[string]string),
	}
}

func (f *fakeBackend) SearchTracks(_ context.Context, query string, limit int) ([]model.Candidate, error) {
	f.searches = append(f.searches, query)
	if len(f.searchErrors) > 0 {
		err := f.searchErrors[0]
		f.searchErrors = f.searchErrors[1:]
		if err != nil {
			return nil, err
		}
	}
	return []model.Candidate{{URI: "spotify:track:1", Name: query}}, nil
}

func (f *fakeBackend) CurrentUser(context.Context) (string, error) {
	f.calls["user"] = append(f.calls["user"], nil)
	return "user", nil
}

func (f *fakeBackend) CreatePlaylist(_ context.Context, user, name, description string) (string, error) {
	f.nextID++
	id := fmt.Sprintf("playlist-%d", f.nextID)
	f.playlists[id] = name
	f.calls["create"] = append(f.calls["create"], []string{user, name, description})
	return id, nil
}

func (f *fakeBackend) PlaylistName(_ context.Context, id string) (string, error) {
	name, ok := f.playlists[id]
	if !ok {
		return "", &url.Error{Op: "Get", URL: "/playlists/" + id, Err: &StatusError{StatusCode: 404}}
	}
	return name, nil
}

func (f *fakeBackend) PlaylistItems(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeBackend) AddItems(_ context.Context, _ string, uris []string) error {
	f.calls["add"] = append(f.calls["add"], uris)
	return nil
}

func (f *fakeBackend) RemoveItems(_ context.Context, _ string, uris []string) error {
	f.calls["remove"] = append(f.calls["remove"], uris)
	return nil
}

func (f *fakeBackend) ReplaceItems(_ context.Context, _ string, uris []string) error {
	f.calls["replace"] = append(f.calls["replace"], uris)
	return nil
}

func (f *fakeBackend) RenamePlaylist(_ context.Context, id, name string) error {
	f.playlists[id] = name
	return nil
}

func newTestClient(backend Backend) (*Client, *[]time.Duration) {
	var sleeps []time.Duration
	client := NewClient(backend)
	client.Limiter = rate.NewLimiter(rate.Inf, 1)
	client.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return client, &sleeps
}

func rateLimited(seconds int) error {
	return &url.Error{Op: "Get", URL: "/search", Err: &RetryAfterError{RetryAfter: time.Duration(seconds) * time.Second}}
}

func serverError(status int) error {
	return &url.Error{Op: "Get", URL: "/search", Err: &StatusError{StatusCode: status}}
}

func TestClient_Search(t *testing.T) {
	backend := newFakeBackend()
	client, sleeps := newTestClient(backend)

	candidates, err := client.Search(context.Background(), Query{Artist: "A", Title: "B"}, 5)

	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, []string{"artist:A track:B"}, backend.searches)
	assert.Empty(t, *sleeps)
}

func TestClient_RateLimit(t *testing.T) {
	tests := []struct {
		name           string
		errors         []error
		expectedSleeps []time.Duration
		expectedCalls  int
		expectedWait   time.Duration // zero means success expected
	}{
		{
			name:           "short wait is slept through",
			errors:         []error{rateLimited(5)},
			expectedSleeps: []time.Duration{5 * time.Second},
			expectedCalls:  2,
		},
		{
			name:           "wait at the ceiling is slept through",
			errors:         []error{rateLimited(60)},
			expectedSleeps: []time.Duration{60 * time.Second},
			expectedCalls:  2,
		},
		{
			name:          "long wait aborts immediately",
			errors:        []error{rateLimited(3600)},
			expectedCalls: 1,
			expectedWait:  3600 * time.Second,
		},
		{
			name:           "second rate limit aborts",
			errors:         []error{rateLimited(5), rateLimited(7)},
			expectedSleeps: []time.Duration{5 * time.Second},
			expectedCalls:  2,
			expectedWait:   7 * time.Second,
		},
		{
			name:           "rate limit after a server error still aborts",
			errors:         []error{rateLimited(5), serverError(502), rateLimited(5)},
			expectedSleeps: []time.Duration{5 * time.Second, 2 * time.Second},
			expectedCalls:  3,
			expectedWait:   5 * time.Second,
		},
		{
			name:           "zero wait is floored",
			errors:         []error{&RetryAfterError{}},
			expectedSleeps: []time.Duration{time.Second},
			expectedCalls:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.searchErrors = tt.errors
			client, sleeps := newTestClient(backend)

			_, err := client.Search(context.Background(), Query{Title: "x"}, 5)

			assert.Equal(t, tt.expectedCalls, len(backend.searches))
			assert.Equal(t, tt.expectedSleeps, *sleeps)
			if tt.expectedWait == 0 {
				assert.NoError(t, err)
			} else {
				var rateLimitErr *RateLimitExceededError
				require.True(t, errors.As(err, &rateLimitErr))
				assert.Equal(t, tt.expectedWait, rateLimitErr.RetryAfter)
			}
		})
	}
}

func TestClient_ServerErrors(t *testing.T) {
	t.Run("recovers within attempts", func(t *testing.T) {
		backend := newFakeBackend()
		backend.searchErrors = []error{serverError(502), serverError(503)}
		client, sleeps := newTestClient(backend)

		_, err := client.Search(context.Background(), Query{Title: "x"}, 5)

		require.NoError(t, err)
		assert.Len(t, backend.searches, 3)
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		backend := newFakeBackend()
		backend.searchErrors = []error{serverError(500), serverError(500), serverError(500), nil}
		client, _ := newTestClient(backend)

		_, err := client.Search(context.Background(), Query{Title: "x"}, 5)

		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Len(t, backend.searches, 3)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		sentinel := errors.New("bad request")
		backend := newFakeBackend()
		backend.searchErrors = []error{sentinel}
		client, sleeps := newTestClient(backend)

		_, err := client.Search(context.Background(), Query{Title: "x"}, 5)

		assert.ErrorIs(t, err, sentinel)
		assert.Len(t, backend.searches, 1)
		assert.Empty(t, *sleeps)
	})
}

func TestClient_PlaylistNameNotFound(t *testing.T) {
	client, _ := newTestClient(newFakeBackend())

	_, err := client.PlaylistName(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_CreatePlaylistLooksUpUserOnce(t *testing.T) {
	backend := newFakeBackend()
	client, _ := newTestClient(backend)

	first, err := client.CreatePlaylist(context.Background(), "one", "desc")
	require.NoError(t, err)
	second, err := client.CreatePlaylist(context.Background(), "two", "desc")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, backend.calls["user"], 1)
	assert.Equal(t, []string{"user", "one", "desc"}, backend.calls["create"][0])
}

func uris(n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = fmt.Sprintf("spotify:track:%d", i)
	}
	return res
}

func TestClient_Batching(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		call     func(c *Client, uris []string) error
		expected map[string][]int
	}{
		{
			name:     "add splits into batches",
			count:    250,
			call:     func(c *Client, uris []string) error { return c.AddItems(context.Background(), "p", uris) },
			expected: map[string][]int{"add": {100, 100, 50}},
		},
		{
			name:     "remove splits into batches",
			count:    101,
			call:     func(c *Client, uris []string) error { return c.RemoveItems(context.Background(), "p", uris) },
			expected: map[string][]int{"remove": {100, 1}},
		},
		{
			name:     "add nothing",
			count:    0,
			call:     func(c *Client, uris []string) error { return c.AddItems(context.Background(), "p", uris) },
			expected: map[string][]int{},
		},
		{
			name:     "replace then append",
			count:    230,
			call:     func(c *Client, uris []string) error { return c.ReplaceItems(context.Background(), "p", uris) },
			expected: map[string][]int{"replace": {100}, "add": {100, 30}},
		},
		{
			name:     "replace with nothing clears",
			count:    0,
			call:     func(c *Client, uris []string) error { return c.ReplaceItems(context.Background(), "p", uris) },
			expected: map[string][]int{"replace": {0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			client, _ := newTestClient(backend)

			require.NoError(t, tt.call(client, uris(tt.count)))

			actual := make(map[string][]int)
			for kind, calls := range backend.calls {
				for _, c := range calls {
					actual[kind] = append(actual[kind], len(c))
				}
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestTrackIDs(t *testing.T) {
	assert.Equal(t, "abc", trackID("spotify:track:abc"))
	assert.Equal(t, "abc", trackID("abc"))
	assert.Equal(t, "spotify:track:abc", trackURI("abc"))
	assert.Equal(t, "spotify:track:abc", trackURI("spotify:track:abc"))
}
