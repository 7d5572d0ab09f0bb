package model

import "context"

// SourceType identifies where a playlist's tracks came from
type SourceType string

const (
	SourceRekordbox    SourceType = "rekordbox"
	SourceBeatport     SourceType = "beatport"
	SourceLabel        SourceType = "label"
	SourceSubsonic     SourceType = "subsonic"
	SourceLastfm       SourceType = "lastfm"
	SourceListenBrainz SourceType = "listenbrainz"
)

// Label returns a human-readable name for the source
func (s SourceType) Label() string {
	switch s {
	case SourceRekordbox:
		return "Rekordbox"
	case SourceBeatport:
		return "Beatport"
	case SourceLabel:
		return "Beatport Label"
	case SourceSubsonic:
		return "Subsonic"
	case SourceLastfm:
		return "Last.fm"
	case SourceListenBrainz:
		return "ListenBrainz"
	default:
		return string(s)
	}
}

// Playlist is an ordered set of local tracks that should be mirrored to a
// single remote playlist.
type Playlist struct {
	Name string

	// Identity uniquely identifies the playlist across runs: a library path
	// for Rekordbox, or a canonical URL for scraped sources.
	Identity   string
	SourceType SourceType
	Tracks     []LocalTrack
}

// Description returns the text used for the remote playlist description
func (p Playlist) Description() string {
	return "Synced from " + p.SourceType.Label() + " by cratesync"
}

// Source represents somewhere that local playlists can be read from
type Source interface {
	Playlists(ctx context.Context) ([]Playlist, error)
}
