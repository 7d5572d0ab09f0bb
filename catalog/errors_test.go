package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitExceededError_Wait(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		expected   string
	}{
		{name: "seconds", retryAfter: 45 * time.Second, expected: "45s"},
		{name: "minutes", retryAfter: 125 * time.Second, expected: "2m 5s"},
		{name: "exactly a minute", retryAfter: 60 * time.Second, expected: "1m 0s"},
		{name: "hours", retryAfter: 3725 * time.Second, expected: "1h 2m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &RateLimitExceededError{RetryAfter: tt.retryAfter}
			assert.Equal(t, tt.expected, err.Wait())
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}
