// Package report summarises the outcome of a sync run.
package report

import (
	"fmt"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/reconcile"
	"github.com/csmith/cratesync/snapshot"
)

// LowConfidenceScore is the score below which matches are called out for
// manual review
const LowConfidenceScore = 90

// Track is the outcome of resolving a single local track
type Track struct {
	Track   model.LocalTrack
	Outcome *model.Outcome

	// Cached is set if the outcome came from the match cache.
	Cached bool
	// Retried is set if a cached failure was old enough to search again.
	Retried bool
	// Searches is the number of catalog searches made for the track.
	Searches int
}

// LowConfidence reports whether a matched track deserves a second look
func (t Track) LowConfidence() bool {
	return t.Outcome != nil && (t.Outcome.Score < LowConfidenceScore || t.Outcome.MatchType == model.FallbackVersion)
}

// Playlist summarises the sync of one playlist
type Playlist struct {
	Name       string
	Identity   string
	SourceType model.SourceType
	Tracks     []Track
	Reconcile  reconcile.Result
}

func (p *Playlist) Total() int {
	return len(p.Tracks)
}

// Matched returns the tracks that were resolved
func (p *Playlist) Matched() []Track {
	var res []Track
	for _, t := range p.Tracks {
		if t.Outcome != nil {
			res = append(res, t)
		}
	}
	return res
}

// Unresolved returns the tracks that couldn't be matched
func (p *Playlist) Unresolved() []Track {
	var res []Track
	for _, t := range p.Tracks {
		if t.Outcome == nil {
			res = append(res, t)
		}
	}
	return res
}

// LowConfidence returns matched tracks that deserve a second look
func (p *Playlist) LowConfidence() []Track {
	var res []Track
	for _, t := range p.Tracks {
		if t.LowConfidence() {
			res = append(res, t)
		}
	}
	return res
}

func (p *Playlist) Fallbacks() int {
	count := 0
	for _, t := range p.Tracks {
		if t.Outcome != nil && t.Outcome.MatchType == model.FallbackVersion {
			count++
		}
	}
	return count
}

func (p *Playlist) CacheHits() int {
	count := 0
	for _, t := range p.Tracks {
		if t.Cached {
			count++
		}
	}
	return count
}

// Lookups returns the number of tracks that needed catalog searches
func (p *Playlist) Lookups() int {
	count := 0
	for _, t := range p.Tracks {
		if !t.Cached {
			count++
		}
	}
	return count
}

// Searches returns the total number of catalog searches
func (p *Playlist) Searches() int {
	count := 0
	for _, t := range p.Tracks {
		count += t.Searches
	}
	return count
}

func (p *Playlist) Retries() int {
	count := 0
	for _, t := range p.Tracks {
		if t.Retried {
			count++
		}
	}
	return count
}

// MatchRate returns the percentage of tracks resolved
func (p *Playlist) MatchRate() float64 {
	return rate(len(p.Matched()), p.Total())
}

// Scores returns the average, minimum and maximum match scores. All are
// zero if nothing matched.
func (p *Playlist) Scores() (avg, lowest, highest float64) {
	matched := p.Matched()
	if len(matched) == 0 {
		return 0, 0, 0
	}

	lowest, highest = 100, 0
	var sum float64
	for _, t := range matched {
		sum += t.Outcome.Score
		lowest = min(lowest, t.Outcome.Score)
		highest = max(highest, t.Outcome.Score)
	}
	return sum / float64(len(matched)), lowest, highest
}

// Run summarises a whole sync run
type Run struct {
	Started   time.Time
	Threshold int
	DryRun    bool
	Playlists []*Playlist

	// Err is the error that ended the run early, if any.
	Err error

	// Warnings lists problems that didn't stop the run, such as a state
	// file that couldn't be read.
	Warnings []string
}

// NoteSnapshot records a warning if the named file couldn't be loaded and
// the run started without it
func (r *Run) NoteSnapshot(name string, res snapshot.Result) {
	if res.Status == snapshot.Degraded {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s could not be read (%s), started empty", name, res.Reason))
	}
}

// Totals returns the number of matched and unresolved tracks across all
// playlists
func (r *Run) Totals() (matched, unresolved int) {
	for _, p := range r.Playlists {
		matched += len(p.Matched())
		unresolved += len(p.Unresolved())
	}
	return matched, unresolved
}

// MatchRate returns the percentage of tracks resolved across all playlists
func (r *Run) MatchRate() float64 {
	matched, unresolved := r.Totals()
	return rate(matched, matched+unresolved)
}

func (r *Run) mode() string {
	if r.DryRun {
		return "dry-run"
	}
	return "live"
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
