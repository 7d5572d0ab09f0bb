// Package state records which remote playlist belongs to each local playlist,
// and what it contained after the last sync.
package state

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/snapshot"
	"github.com/goccy/go-json"
)

// Format is the on-disk playlist state format
var Format = snapshot.Format{
	Name:    "playlist state",
	Version: 2,
	Migrations: map[int]snapshot.Migration{
		1: migrateV1,
	},
}

// Playlist is the persisted state of one synced playlist
type Playlist struct {
	RemoteID    string `json:"remote_id"`
	DisplayName string `json:"display_name"`
	SourcePath  string `json:"source_path"`

	// MemberURIs is what the remote playlist contained after the last sync.
	// It is nil if unknown, and the remote playlist must be read instead.
	MemberURIs []string `json:"member_uris"`

	LastSynced time.Time        `json:"last_synced"`
	PrefixUsed string           `json:"prefix_used,omitempty"`
	SourceType model.SourceType `json:"source_type"`
}

// Store keeps playlist state keyed by local playlist identity
type Store interface {
	Get(identity string) (Playlist, bool)
	Put(identity string, playlist Playlist)
	Save() error
}

// File is a Store persisted to a JSON file
type File struct {
	path    string
	entries map[string]Playlist
}

// Open loads the state file at path. Missing or unusable files give empty
// state; the result says which.
func Open(path string) (*File, snapshot.Result) {
	f := &File{
		path:    path,
		entries: make(map[string]Playlist),
	}

	result := snapshot.Load(Format, path, &f.entries)
	if f.entries == nil {
		f.entries = make(map[string]Playlist)
	}

	slog.Debug("Opened playlist state", "path", path, "status", result.Status, "playlists", len(f.entries))
	return f, result
}

func (f *File) Get(identity string) (Playlist, bool) {
	p, ok := f.entries[identity]
	return p, ok
}

func (f *File) Put(identity string, playlist Playlist) {
	f.entries[identity] = playlist
}

func (f *File) Save() error {
	return snapshot.Save(Format, f.path, f.entries)
}

// Identities returns every identity with recorded state, sorted
func (f *File) Identities() []string {
	return slices.Sorted(maps.Keys(f.entries))
}

// Discard is a Store that remembers nothing
var Discard Store = discard{}

type discard struct{}

func (discard) Get(string) (Playlist, bool) { return Playlist{}, false }
func (discard) Put(string, Playlist)        {}
func (discard) Save() error                 { return nil }

type playlistV1 struct {
	SpotifyID     string  `json:"spotify_id"`
	SpotifyName   string  `json:"spotify_name"`
	RekordboxPath string  `json:"rekordbox_path"`
	SourcePath    string  `json:"source_path"`
	LastSynced    string  `json:"last_synced"`
	PrefixUsed    *string `json:"prefix_used"`
	SourceType    string  `json:"source_type"`
}

var v1TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// migrateV1 renames the service-specific fields of version 1 state. Version
// 1 didn't record playlist contents, so members are left unknown. Entries
// are re-keyed by their source path, as version 1 keyed them by name.
func migrateV1(entries json.RawMessage) (json.RawMessage, error) {
	var old map[string]playlistV1
	if err := json.Unmarshal(entries, &old); err != nil {
		return nil, err
	}

	res := make(map[string]Playlist, len(old))
	for key, p := range old {
		if p.SpotifyID == "" {
			return nil, fmt.Errorf("entry %q has no playlist ID", key)
		}

		path := p.RekordboxPath
		if path == "" {
			path = p.SourcePath
		}
		if path == "" {
			path = key
		}

		sourceType := model.SourceType(p.SourceType)
		if sourceType == "" {
			sourceType = model.SourceRekordbox
		}

		migrated := Playlist{
			RemoteID:    p.SpotifyID,
			DisplayName: p.SpotifyName,
			SourcePath:  path,
			LastSynced:  parseV1Time(p.LastSynced),
			SourceType:  sourceType,
		}
		if p.PrefixUsed != nil {
			migrated.PrefixUsed = *p.PrefixUsed
		}

		res[path] = migrated
	}

	return json.Marshal(res)
}

func parseV1Time(s string) time.Time {
	for _, layout := range v1TimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
