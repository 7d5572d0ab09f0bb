package sources

import (
	"context"
	"log/slog"
	"sync"

	"github.com/csmith/cratesync/model"
	"github.com/twoscott/gobble-fm/lastfm"
	"github.com/twoscott/gobble-fm/session"
)

// Lastfm is a source that treats a user's loved tracks on Last.fm as a
// single crate
type Lastfm struct {
	APIKey   string
	Secret   string
	Username string
	Password string

	// Name is used for the remote playlist; defaults to "Last.fm Loved".
	Name string

	mu     sync.Mutex
	client *session.Client
}

// Playlists retrieves every page of loved tracks from Last.fm
func (l *Lastfm) Playlists(ctx context.Context) ([]model.Playlist, error) {
	client, err := l.getClient()
	if err != nil {
		return nil, err
	}

	slog.Debug("Retrieving loved tracks", "source", "lastfm")

	var tracks []model.LocalTrack
	page := uint(1)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lovedTracks, err := client.User.LovedTracks(lastfm.LovedTracksParams{
			User:  l.Username,
			Page:  page,
			Limit: 200,
		})
		if err != nil {
			return nil, err
		}

		for _, track := range lovedTracks.Tracks {
			tracks = append(tracks, model.LocalTrack{
				ID:     track.MBID,
				Artist: track.Artist.Name,
				Title:  track.Title,
			})
		}

		if page >= uint(lovedTracks.TotalPages) {
			break
		}
		page++
	}

	slog.Debug("Retrieved loved tracks", "count", len(tracks), "source", "lastfm")

	name := l.Name
	if name == "" {
		name = "Last.fm Loved"
	}

	return []model.Playlist{{
		Name:       name,
		Identity:   "lastfm:" + l.Username,
		SourceType: model.SourceLastfm,
		Tracks:     tracks,
	}}, nil
}

// getClient lazily connects to Last.fm
func (l *Lastfm) getClient() (*session.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	client := session.NewClient(l.APIKey, l.Secret)
	if err := client.Login(l.Username, l.Password); err != nil {
		return nil, err
	}

	l.client = client
	return l.client, nil
}

var _ model.Source = &Lastfm{}
