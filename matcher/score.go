package matcher

import (
	"math"
	"slices"

	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/normalize"
)

// Config holds the tunable weights and thresholds used when scoring and
// selecting candidates.
type Config struct {
	ArtistWeight float64
	TitleWeight  float64

	// VersionPenalty is subtracted when the local and candidate titles name
	// different cuts of a track.
	VersionPenalty float64

	// DurationGrace is the difference, in seconds, tolerated before any
	// duration penalty applies.
	DurationGrace float64
	// DurationPenaltyPerSecond is charged for each second beyond the grace.
	DurationPenaltyPerSecond float64
	// MaxDurationPenalty caps the duration penalty. It must stay small enough
	// that a perfect artist and title match in a different cut still clears
	// the acceptance threshold.
	MaxDurationPenalty float64

	// EarlyExitScore is the score an exact first-strategy candidate must
	// reach to skip the remaining strategies.
	EarlyExitScore float64

	// SearchLimit is the number of results requested per search.
	SearchLimit int
}

// DefaultConfig returns the standard scoring configuration
func DefaultConfig() Config {
	return Config{
		ArtistWeight:             0.4,
		TitleWeight:              0.6,
		VersionPenalty:           15,
		DurationGrace:            30,
		DurationPenaltyPerSecond: 1.0 / 3.0,
		MaxDurationPenalty:       15,
		EarlyExitScore:           95,
		SearchLimit:              5,
	}
}

// Score computes the confidence, from 0 to 100, that a candidate is the
// local track, along with whether the candidate is the same version.
func (c Config) Score(track model.LocalTrack, candidate model.Candidate) (float64, model.MatchType) {
	title := fieldSimilarity(track.Title, candidate.Name, tokenSortRatio)

	var base float64
	if track.Artist == "" {
		base = title
	} else {
		artist := fieldSimilarity(track.Artist, candidate.Artist, artistSimilarity)
		base = artist*c.ArtistWeight + title*c.TitleWeight
	}

	matchType := Classify(track, candidate)
	score := base - c.DurationPenalty(track.Duration, candidate.DurationMS)
	if matchType == model.FallbackVersion {
		score -= c.VersionPenalty
	}

	return math.Min(100, math.Max(0, score)), matchType
}

// DurationPenalty returns the penalty for a difference in track lengths.
// Unknown durations (zero) are never penalised.
func (c Config) DurationPenalty(seconds int, candidateMS int) float64 {
	if seconds <= 0 || candidateMS <= 0 {
		return 0
	}

	diff := math.Abs(float64(seconds) - float64(candidateMS)/1000)
	if diff <= c.DurationGrace {
		return 0
	}

	return math.Min((diff-c.DurationGrace)*c.DurationPenaltyPerSecond, c.MaxDurationPenalty)
}

// Classify decides whether a candidate is the same cut of a track as the
// local track asked for. Original mixes count as unnamed.
func Classify(track model.LocalTrack, candidate model.Candidate) model.MatchType {
	local := normalize.NamedVariants(track.Title)
	remote := normalize.NamedVariants(candidate.Name)

	if sameSet(local, remote) {
		return model.ExactMatch
	}
	return model.FallbackVersion
}

// fieldSimilarity compares a field both as given and with version
// information stripped, and returns the better of the two
func fieldSimilarity(local, remote string, compare func(a, b string) float64) float64 {
	raw := compare(normalize.Normalize(local), normalize.Normalize(remote))
	stripped := compare(
		normalize.Normalize(normalize.StripVersion(local)),
		normalize.Normalize(normalize.StripVersion(remote)),
	)
	return math.Max(raw, stripped)
}

func sameSet(a, b []string) bool {
	for _, s := range a {
		if !slices.Contains(b, s) {
			return false
		}
	}
	for _, s := range b {
		if !slices.Contains(a, s) {
			return false
		}
	}
	return true
}
