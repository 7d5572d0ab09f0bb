package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name            string
		desired         []string
		actual          []string
		expectedMatched []string
		expectedMissing []string
		expectedExtra   []string
	}{
		{
			name:            "all tracks match",
			desired:         []string{"a", "b"},
			actual:          []string{"b", "a"},
			expectedMatched: []string{"a", "b"},
			expectedMissing: []string{},
			expectedExtra:   []string{},
		},
		{
			name:            "some tracks missing",
			desired:         []string{"a", "b", "c"},
			actual:          []string{"a"},
			expectedMatched: []string{"a"},
			expectedMissing: []string{"b", "c"},
			expectedExtra:   []string{},
		},
		{
			name:            "some extra tracks",
			desired:         []string{"a"},
			actual:          []string{"x", "a", "y"},
			expectedMatched: []string{"a"},
			expectedMissing: []string{},
			expectedExtra:   []string{"x", "y"},
		},
		{
			name:            "empty desired",
			desired:         []string{},
			actual:          []string{"a", "b"},
			expectedMatched: []string{},
			expectedMissing: []string{},
			expectedExtra:   []string{"a", "b"},
		},
		{
			name:            "unknown actual",
			desired:         []string{"a", "b"},
			actual:          nil,
			expectedMatched: []string{},
			expectedMissing: []string{"a", "b"},
			expectedExtra:   []string{},
		},
		{
			name:            "duplicates reported once",
			desired:         []string{"a", "b", "a"},
			actual:          []string{"x", "x", "b"},
			expectedMatched: []string{"b"},
			expectedMissing: []string{"a"},
			expectedExtra:   []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Segment(tt.desired, tt.actual)

			assert.Equal(t, tt.expectedMatched, result.Matched, "matched tracks mismatch")
			assert.Equal(t, tt.expectedMissing, result.Missing, "missing tracks mismatch")
			assert.Equal(t, tt.expectedExtra, result.Extra, "extra tracks mismatch")
		})
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: []string{}},
		{name: "no duplicates", input: []string{"a", "b"}, expected: []string{"a", "b"}},
		{name: "keeps first occurrence", input: []string{"b", "a", "b", "c", "a"}, expected: []string{"b", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Dedupe(tt.input))
		})
	}
}
