package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/csmith/cratesync/model"
	"github.com/zmb3/spotify/v2"
)

const trackURIPrefix = "spotify:track:"

// Spotify is a Backend for the Spotify Web API
type Spotify struct {
	client *spotify.Client
}

// NewSpotify creates a backend that makes requests with the given
// (already authenticated) HTTP client
func NewSpotify(httpClient *http.Client) *Spotify {
	return &Spotify{client: spotify.New(wrapTransport(httpClient))}
}

func (s *Spotify) SearchTracks(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, err
	}

	if res.Tracks == nil {
		return nil, nil
	}

	candidates := make([]model.Candidate, 0, len(res.Tracks.Tracks))
	for i := range res.Tracks.Tracks {
		candidates = append(candidates, toCandidate(&res.Tracks.Tracks[i]))
	}
	return candidates, nil
}

func (s *Spotify) CurrentUser(ctx context.Context) (string, error) {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *Spotify) CreatePlaylist(ctx context.Context, user, name, description string) (string, error) {
	playlist, err := s.client.CreatePlaylistForUser(ctx, user, name, description, false, false)
	if err != nil {
		return "", err
	}
	return string(playlist.ID), nil
}

func (s *Spotify) PlaylistName(ctx context.Context, id string) (string, error) {
	playlist, err := s.client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return "", err
	}
	return playlist.Name, nil
}

func (s *Spotify) PlaylistItems(ctx context.Context, id string) ([]string, error) {
	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(100))
	if err != nil {
		return nil, err
	}

	var uris []string
	for {
		for _, item := range page.Items {
			// Local files have no ID and can't be added or removed by URI.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				uris = append(uris, trackURI(string(item.Track.Track.ID)))
			}
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return uris, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *Spotify) AddItems(ctx context.Context, id string, uris []string) error {
	_, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(id), trackIDs(uris)...)
	return err
}

func (s *Spotify) RemoveItems(ctx context.Context, id string, uris []string) error {
	_, err := s.client.RemoveTracksFromPlaylist(ctx, spotify.ID(id), trackIDs(uris)...)
	return err
}

func (s *Spotify) ReplaceItems(ctx context.Context, id string, uris []string) error {
	return s.client.ReplacePlaylistTracks(ctx, spotify.ID(id), trackIDs(uris)...)
}

func (s *Spotify) RenamePlaylist(ctx context.Context, id, name string) error {
	return s.client.ChangePlaylistName(ctx, spotify.ID(id), name)
}

func toCandidate(track *spotify.FullTrack) model.Candidate {
	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}

	return model.Candidate{
		URI:        string(track.URI),
		Name:       track.Name,
		Artist:     strings.Join(artists, ", "),
		Album:      track.Album.Name,
		DurationMS: int(track.Duration),
	}
}

// trackID extracts the bare track ID from a track URI
func trackID(uri string) string {
	return strings.TrimPrefix(uri, trackURIPrefix)
}

// trackURI builds a track URI from a bare ID
func trackURI(id string) string {
	if strings.HasPrefix(id, trackURIPrefix) {
		return id
	}
	return trackURIPrefix + id
}

func trackIDs(uris []string) []spotify.ID {
	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		ids[i] = spotify.ID(trackID(uri))
	}
	return ids
}

var _ Backend = &Spotify{}
