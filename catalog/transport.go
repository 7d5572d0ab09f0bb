package catalog

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusTransport turns rate limiting, missing resources and server errors
// into typed errors before the API library sees the response.
type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		discard(resp)
		return nil, &RetryAfterError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode >= http.StatusInternalServerError:
		discard(resp)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	default:
		return resp, nil
	}
}

// parseRetryAfter reads a Retry-After header given in seconds. Missing or
// malformed values, and anything under a second, become one second.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 1 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

// wrapTransport returns a copy of client with status handling installed
func wrapTransport(client *http.Client) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	wrapped := *client
	wrapped.Transport = &statusTransport{next: next}
	return &wrapped
}
