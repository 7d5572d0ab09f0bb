package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_String(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		expected string
	}{
		{name: "fielded", query: Query{Artist: "Solomun", Title: "Vultora"}, expected: "artist:Solomun track:Vultora"},
		{name: "fielded with extra", query: Query{Artist: "Âme", Title: "Für Immer", Extra: "Dixon"}, expected: "artist:Âme track:Für Immer Dixon"},
		{name: "no artist", query: Query{Title: "Vultora"}, expected: "track:Vultora"},
		{name: "plain", query: Query{Artist: "Solomun", Title: "Vultora", Plain: true}, expected: "Solomun Vultora"},
		{name: "plain skips blanks", query: Query{Title: "Vultora", Extra: " ", Plain: true}, expected: "Vultora"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.query.String())
		})
	}
}
