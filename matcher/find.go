package matcher

import "github.com/csmith/cratesync/model"

// Find scores every candidate against the track and returns the best one
// that reaches minScore, or nil if none do. Higher scores win; equal scores
// prefer exact matches, and then the earlier candidate. If exactOnly is set,
// fallback versions are not considered at all.
func (c Config) Find(track model.LocalTrack, candidates []model.Candidate, minScore float64, exactOnly bool) *model.Outcome {
	bestIndex := -1
	bestScore := -1.0
	var bestType model.MatchType

	for i := range candidates {
		score, matchType := c.Score(track, candidates[i])
		if exactOnly && matchType != model.ExactMatch {
			continue
		}

		if score > bestScore || (score == bestScore && matchType == model.ExactMatch && bestType != model.ExactMatch) {
			bestIndex = i
			bestScore = score
			bestType = matchType
		}
	}

	if bestIndex == -1 || bestScore < minScore {
		return nil
	}

	best := candidates[bestIndex]
	return &model.Outcome{
		URI:       best.URI,
		Name:      best.Name,
		Artist:    best.Artist,
		Score:     bestScore,
		MatchType: bestType,
	}
}
