package model

// MatchType describes whether a match kept the requested version of a track
type MatchType string

const (
	// ExactMatch means no version mismatch was detected
	ExactMatch MatchType = "exact"
	// FallbackVersion means a different cut of the track was substituted
	FallbackVersion MatchType = "fallback_version"
)

// Outcome is the adjudicated catalog match for a local track. Unresolved
// tracks are represented by a nil *Outcome.
type Outcome struct {
	URI       string
	Name      string
	Artist    string
	Score     float64
	MatchType MatchType
}
