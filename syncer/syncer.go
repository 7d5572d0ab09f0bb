// Package syncer drives the sync of a single playlist: resolving each track
// through the match cache and matcher, then reconciling the remote playlist.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/csmith/cratesync/cache"
	"github.com/csmith/cratesync/matcher"
	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/normalize"
	"github.com/csmith/cratesync/reconcile"
	"github.com/csmith/cratesync/report"
)

// MatchCache stores match outcomes between runs
type MatchCache interface {
	Lookup(key string) (cache.Entry, bool)
	Record(key string, outcome *model.Outcome, threshold int)
	IsRetryEligible(entry cache.Entry, maxAge time.Duration, force bool) bool
	Save() error
}

// NoCache is a MatchCache that remembers nothing
var NoCache MatchCache = noCache{}

type noCache struct{}

func (noCache) Lookup(string) (cache.Entry, bool)                     { return cache.Entry{}, false }
func (noCache) Record(string, *model.Outcome, int)                    {}
func (noCache) IsRetryEligible(cache.Entry, time.Duration, bool) bool { return false }
func (noCache) Save() error                                           { return nil }

// Matcher resolves a local track against the catalog
type Matcher interface {
	Match(ctx context.Context, track model.LocalTrack, threshold int) (matcher.Result, error)
}

// Reconciler brings a remote playlist in line with a list of URIs
type Reconciler interface {
	Apply(ctx context.Context, playlist model.Playlist, uris []string) (reconcile.Result, error)
	Plan(playlist model.Playlist, uris []string) reconcile.Result
}

// Options control how tracks are resolved and playlists updated
type Options struct {
	// Threshold is the minimum score, 0 to 100, for a match to be accepted.
	Threshold int

	// BypassCache ignores existing cache entries. Outcomes are still
	// recorded.
	BypassCache bool

	// ForceRetry searches again for every cached failure, regardless of age.
	ForceRetry bool

	// RetryAge is how old a cached failure must be before it's retried.
	RetryAge time.Duration

	// DryRun resolves tracks but only plans playlist changes.
	DryRun bool
}

// Syncer syncs playlists
type Syncer struct {
	Cache      MatchCache
	Matcher    Matcher
	Reconciler Reconciler
	Options    Options
}

// New creates a syncer. A nil cache is replaced with NoCache.
func New(matchCache MatchCache, m Matcher, r Reconciler, options Options) *Syncer {
	if matchCache == nil {
		matchCache = NoCache
	}

	return &Syncer{
		Cache:      matchCache,
		Matcher:    m,
		Reconciler: r,
		Options:    options,
	}
}

// Sync resolves every track in the playlist and updates the remote playlist.
// The cache is saved before returning, even if an error stops the sync
// part way through. The report covers whatever was done.
func (s *Syncer) Sync(ctx context.Context, playlist model.Playlist) (*report.Playlist, error) {
	rep := &report.Playlist{
		Name:       playlist.Name,
		Identity:   playlist.Identity,
		SourceType: playlist.SourceType,
	}

	slog.Info("Syncing playlist", "playlist", playlist.Name, "tracks", len(playlist.Tracks), "source", playlist.SourceType)

	uris, err := s.resolveAll(ctx, playlist, rep)
	if saveErr := s.Cache.Save(); saveErr != nil {
		slog.Warn("Unable to save match cache", "error", saveErr)
	}
	if err != nil {
		return rep, err
	}

	if s.Options.DryRun {
		rep.Reconcile = s.Reconciler.Plan(playlist, uris)
	} else {
		rep.Reconcile, err = s.Reconciler.Apply(ctx, playlist, uris)
		if err != nil {
			return rep, fmt.Errorf("updating playlist %q: %w", playlist.Name, err)
		}
	}

	slog.Info(
		"Synced playlist",
		"playlist", playlist.Name,
		"matched", len(rep.Matched()),
		"unresolved", len(rep.Unresolved()),
		"cache_hits", rep.CacheHits(),
		"searches", rep.Searches(),
		"action", rep.Reconcile.Action,
		"added", rep.Reconcile.Added,
		"removed", rep.Reconcile.Removed,
	)
	return rep, nil
}

func (s *Syncer) resolveAll(ctx context.Context, playlist model.Playlist, rep *report.Playlist) ([]string, error) {
	var uris []string
	for i := range playlist.Tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		track, err := s.resolve(ctx, playlist.Tracks[i])
		rep.Tracks = append(rep.Tracks, track)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", playlist.Tracks[i].Display(), err)
		}

		if track.Outcome != nil {
			uris = append(uris, track.Outcome.URI)
		}
	}
	return uris, nil
}

// resolve finds the catalog match for a track, using the cache where it can
func (s *Syncer) resolve(ctx context.Context, local model.LocalTrack) (report.Track, error) {
	res := report.Track{Track: local}
	key := normalize.Key(local.Artist, local.Title)

	if !s.Options.BypassCache {
		if entry, ok := s.Cache.Lookup(key); ok && entry.Satisfies(s.Options.Threshold) {
			if !s.Cache.IsRetryEligible(entry, s.Options.RetryAge, s.Options.ForceRetry) {
				res.Cached = true
				res.Outcome = entry.Outcome()
				slog.Debug("Using cached match", "track", local.Display(), "failed", entry.Failed)
				return res, nil
			}
			res.Retried = true
		}
	}

	result, err := s.Matcher.Match(ctx, local, s.Options.Threshold)
	res.Searches = result.Searches
	if err != nil {
		return res, err
	}

	res.Outcome = result.Outcome
	s.Cache.Record(key, result.Outcome, s.Options.Threshold)

	if result.Outcome == nil {
		slog.Debug("No match found", "track", local.Display(), "searches", result.Searches)
	} else {
		slog.Debug(
			"Matched track",
			"track", local.Display(),
			"match", result.Outcome.Artist+" - "+result.Outcome.Name,
			"score", result.Outcome.Score,
			"type", result.Outcome.MatchType,
			"searches", result.Searches,
		)
	}
	return res, nil
}
