package sources

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/csmith/cratesync/model"
	"github.com/supersonic-app/go-subsonic/subsonic"
)

// Subsonic is a source that treats the starred songs on a Subsonic server as
// a single crate
type Subsonic struct {
	BaseURL    string
	Username   string
	Password   string
	ClientName string

	// Name is used for the remote playlist; defaults to "Subsonic Starred".
	Name string

	mu     sync.Mutex
	client *subsonic.Client
}

// Playlists retrieves starred songs from the Subsonic server
func (s *Subsonic) Playlists(_ context.Context) ([]model.Playlist, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	slog.Debug("Retrieving starred tracks", "source", "subsonic")

	starred, err := client.GetStarred2(nil)
	if err != nil {
		return nil, err
	}

	slog.Debug("Retrieved starred tracks", "count", len(starred.Song), "source", "subsonic")

	name := s.Name
	if name == "" {
		name = "Subsonic Starred"
	}

	return []model.Playlist{{
		Name:       name,
		Identity:   "subsonic:" + s.Username + "@" + s.BaseURL,
		SourceType: model.SourceSubsonic,
		Tracks:     childrenToTracks(starred.Song),
	}}, nil
}

// getClient lazily connects to the Subsonic server
func (s *Subsonic) getClient() (*subsonic.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client := &subsonic.Client{
		Client:     http.DefaultClient,
		BaseUrl:    s.BaseURL,
		User:       s.Username,
		ClientName: s.ClientName,
	}

	if s.Password != "" {
		if err := client.Authenticate(s.Password); err != nil {
			return nil, err
		}
	}

	s.client = client
	return s.client, nil
}

// childrenToTracks converts Subsonic songs to local tracks
func childrenToTracks(songs []*subsonic.Child) []model.LocalTrack {
	tracks := make([]model.LocalTrack, 0, len(songs))
	for _, song := range songs {
		tracks = append(tracks, model.LocalTrack{
			ID:       song.ID,
			Artist:   song.Artist,
			Title:    song.Title,
			Album:    song.Album,
			Genre:    song.Genre,
			Duration: song.Duration,
		})
	}
	return tracks
}

var _ model.Source = &Subsonic{}
