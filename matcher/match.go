package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/csmith/cratesync/catalog"
	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/normalize"
)

// Searcher runs a single catalog search
type Searcher interface {
	Search(ctx context.Context, query catalog.Query, limit int) ([]model.Candidate, error)
}

// Matcher resolves local tracks to catalog tracks by running a series of
// search strategies and scoring everything they return.
type Matcher struct {
	Searcher Searcher
	Config   Config
}

// Result is the outcome of matching a single track
type Result struct {
	// Outcome is the selected match, or nil if the track is unresolved.
	Outcome *model.Outcome

	// Searches is the number of catalog searches performed.
	Searches int

	// EarlyExit is set if the first strategy produced a confident exact match.
	EarlyExit bool
}

// New creates a matcher using the given searcher and configuration
func New(searcher Searcher, config Config) *Matcher {
	return &Matcher{
		Searcher: searcher,
		Config:   config,
	}
}

// Match finds the best catalog match for a track. A nil Outcome with a nil
// error means nothing scored at least threshold. Errors are only returned
// for search failures, which should abort the run.
func (m *Matcher) Match(ctx context.Context, track model.LocalTrack, threshold int) (Result, error) {
	var result Result
	p := newPool()

	search := func(strategy string, query catalog.Query) error {
		result.Searches++
		candidates, err := m.Searcher.Search(ctx, query, m.Config.SearchLimit)
		if err != nil {
			return fmt.Errorf("search %q: %w", query.String(), err)
		}
		added := p.add(candidates)
		slog.Debug("Searched catalog", "strategy", strategy, "query", query.String(), "results", len(candidates), "new", added)
		return nil
	}

	if err := search("fielded", catalog.Query{Artist: track.Artist, Title: track.Title}); err != nil {
		return result, err
	}

	if best := m.Config.Find(track, p.candidates, m.Config.EarlyExitScore, true); best != nil {
		result.Outcome = best
		result.EarlyExit = true
		return result, nil
	}

	if stripped := normalize.StripVersion(track.Title); stripped != "" && stripped != track.Title && len(normalize.Descriptors(track.Title)) > 0 {
		if err := search("stripped", catalog.Query{Artist: track.Artist, Title: stripped}); err != nil {
			return result, err
		}
	}

	if track.Remixer != "" {
		if err := search("remixer", catalog.Query{Artist: track.Artist, Title: track.Title, Extra: track.Remixer}); err != nil {
			return result, err
		}
	}

	artist, title := normalize.Normalize(track.Artist), normalize.Normalize(track.Title)
	if title != "" && (artist != normalize.Simplify(track.Artist) || title != normalize.Simplify(track.Title)) {
		if err := search("normalized", catalog.Query{Artist: artist, Title: title}); err != nil {
			return result, err
		}
	}

	if len(p.candidates) == 0 {
		if err := search("plain", catalog.Query{Artist: track.Artist, Title: track.Title, Plain: true}); err != nil {
			return result, err
		}
	}

	result.Outcome = m.Config.Find(track, p.candidates, float64(threshold), false)
	return result, nil
}

// pool accumulates candidates across strategies, keeping the first copy of
// each URI
type pool struct {
	candidates []model.Candidate
	seen       map[string]bool
}

func newPool() *pool {
	return &pool{seen: make(map[string]bool)}
}

func (p *pool) add(candidates []model.Candidate) int {
	added := 0
	for _, c := range candidates {
		if p.seen[c.URI] {
			continue
		}
		p.seen[c.URI] = true
		p.candidates = append(p.candidates, c)
		added++
	}
	return added
}
