// Package cache persists the outcome of matching each local track, so that
// later runs can skip catalog searches for tracks already resolved.
package cache

import (
	"log/slog"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/snapshot"
)

// CheckpointInterval is the number of records between automatic saves
const CheckpointInterval = 50

// Format is the on-disk cache format
var Format = snapshot.Format{
	Name:    "match cache",
	Version: 1,
}

// Entry is the cached outcome of matching one local track
type Entry struct {
	URI       string          `json:"uri,omitempty"`
	Name      string          `json:"name,omitempty"`
	Artist    string          `json:"artist,omitempty"`
	Score     float64         `json:"score,omitempty"`
	MatchType model.MatchType `json:"match_type,omitempty"`

	// Failed is set if no candidate reached Threshold.
	Failed    bool      `json:"failed"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Satisfies reports whether the entry can stand in for a fresh match at the
// given threshold. A match is reusable if its score still clears the
// threshold; a failure is reusable if it was recorded at the same or a
// lower threshold, as a higher one couldn't have done any better.
func (e Entry) Satisfies(threshold int) bool {
	if e.Failed {
		return e.Threshold <= threshold
	}
	return e.Score >= float64(threshold)
}

// Outcome converts the entry back into a match outcome, or nil for a failure
func (e Entry) Outcome() *model.Outcome {
	if e.Failed {
		return nil
	}

	matchType := e.MatchType
	if matchType == "" {
		matchType = model.ExactMatch
	}

	return &model.Outcome{
		URI:       e.URI,
		Name:      e.Name,
		Artist:    e.Artist,
		Score:     e.Score,
		MatchType: matchType,
	}
}

// Cache is a persistent store of match outcomes keyed by normalize.Key
type Cache struct {
	path    string
	entries map[string]Entry
	dirty   int
	now     func() time.Time
}

// Open loads the cache at path. Missing or unusable files give an empty
// cache; the result says which.
func Open(path string) (*Cache, snapshot.Result) {
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
		now:     time.Now,
	}

	result := snapshot.Load(Format, path, &c.entries)
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}

	slog.Debug("Opened match cache", "path", path, "status", result.Status, "entries", len(c.entries))
	return c, result
}

// Lookup returns the entry for a key, if any
func (c *Cache) Lookup(key string) (Entry, bool) {
	entry, ok := c.entries[key]
	return entry, ok
}

// Record stores the outcome of matching a track; a nil outcome records a
// failure. The cache is saved every CheckpointInterval records.
func (c *Cache) Record(key string, outcome *model.Outcome, threshold int) {
	entry := Entry{
		Failed:    outcome == nil,
		Threshold: threshold,
		Timestamp: c.now().UTC(),
	}

	if outcome != nil {
		entry.URI = outcome.URI
		entry.Name = outcome.Name
		entry.Artist = outcome.Artist
		entry.Score = outcome.Score
		entry.MatchType = outcome.MatchType
	}

	c.entries[key] = entry
	c.dirty++

	if c.dirty >= CheckpointInterval {
		if err := c.Save(); err != nil {
			slog.Warn("Unable to checkpoint match cache", "path", c.path, "error", err)
		}
	}
}

// IsRetryEligible reports whether a failed entry should be matched again:
// always if force is set, otherwise once it is older than maxAge
func (c *Cache) IsRetryEligible(entry Entry, maxAge time.Duration, force bool) bool {
	if !entry.Failed {
		return false
	}
	if force {
		return true
	}
	return c.now().Sub(entry.Timestamp) > maxAge
}

// Save writes the cache to disk
func (c *Cache) Save() error {
	if err := snapshot.Save(Format, c.path, c.entries); err != nil {
		return err
	}
	c.dirty = 0
	return nil
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return len(c.entries)
}
