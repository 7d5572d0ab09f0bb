package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/goccy/go-json"
)

const listenBrainzBaseURL = "https://api.listenbrainz.org"

// ListenBrainz is a source that treats a user's loved recordings on
// ListenBrainz as a single crate
type ListenBrainz struct {
	Token    string
	Username string

	// Name is used for the remote playlist; defaults to "ListenBrainz Loved".
	Name string

	// BaseURL overrides the API root
	BaseURL string
	Client  *http.Client

	// Sleep waits between requests and when rate limited; defaults to a
	// context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

type listenBrainzFeedbackResponse struct {
	Feedback   []listenBrainzFeedback `json:"feedback"`
	Offset     int                    `json:"offset"`
	Count      int                    `json:"count"`
	TotalCount int                    `json:"total_count"`
}

type listenBrainzFeedback struct {
	RecordingMBID string `json:"recording_mbid"`
	Score         int    `json:"score"`
	TrackMetadata *struct {
		ArtistName  string `json:"artist_name"`
		TrackName   string `json:"track_name"`
		ReleaseName string `json:"release_name"`
	} `json:"track_metadata"`
}

// Playlists retrieves loved recordings, with metadata, from ListenBrainz
func (lb *ListenBrainz) Playlists(ctx context.Context) ([]model.Playlist, error) {
	slog.Debug("Retrieving loved tracks", "source", "listenbrainz")

	var allTracks []model.LocalTrack
	offset := 0
	const pageSize = 100

	for {
		tracks, count, totalCount, err := lb.fetchLovedTracksPage(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}

		allTracks = append(allTracks, tracks...)

		if count == 0 || offset+count >= totalCount {
			break
		}
		offset += count
	}

	slog.Debug("Retrieved loved tracks", "count", len(allTracks), "source", "listenbrainz")

	name := lb.Name
	if name == "" {
		name = "ListenBrainz Loved"
	}

	return []model.Playlist{{
		Name:       name,
		Identity:   "listenbrainz:" + lb.Username,
		SourceType: model.SourceListenBrainz,
		Tracks:     allTracks,
	}}, nil
}

// fetchLovedTracksPage fetches a single page of loved tracks, retrying when
// rate limited. Recordings without metadata are skipped as they can't be
// searched for.
func (lb *ListenBrainz) fetchLovedTracksPage(ctx context.Context, offset, count int) ([]model.LocalTrack, int, int, error) {
	const maxRetries = 3
	base := lb.BaseURL
	if base == "" {
		base = listenBrainzBaseURL
	}
	endpoint := fmt.Sprintf("%s/1/feedback/user/%s/get-feedback?score=1&metadata=true&offset=%d&count=%d", base, url.PathEscape(lb.Username), offset, count)

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, 0, 0, err
		}

		if lb.Token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Token %s", lb.Token))
		}

		resp, err := httpClient(lb.Client).Do(req)
		if err != nil {
			return nil, 0, 0, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			sleepDuration := lb.getSleepDuration(resp)
			resp.Body.Close()
			slog.Warn("Rate limited (429), retrying", "attempt", attempt+1, "sleep_seconds", sleepDuration.Seconds(), "source", "listenbrainz")
			if err := lb.sleep(ctx, sleepDuration); err != nil {
				return nil, 0, 0, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return nil, 0, 0, fmt.Errorf("ListenBrainz API error: %s - %s", resp.Status, string(body))
		}

		var feedbackResp listenBrainzFeedbackResponse
		err = json.NewDecoder(resp.Body).Decode(&feedbackResp)
		resp.Body.Close()
		if err != nil {
			return nil, 0, 0, err
		}

		var tracks []model.LocalTrack
		for _, feedback := range feedbackResp.Feedback {
			if feedback.TrackMetadata == nil || feedback.TrackMetadata.TrackName == "" {
				slog.Debug("Skipping recording without metadata", "mbid", feedback.RecordingMBID, "source", "listenbrainz")
				continue
			}
			tracks = append(tracks, model.LocalTrack{
				ID:     feedback.RecordingMBID,
				Artist: feedback.TrackMetadata.ArtistName,
				Title:  feedback.TrackMetadata.TrackName,
				Album:  feedback.TrackMetadata.ReleaseName,
			})
		}

		if err := lb.sleep(ctx, time.Second); err != nil {
			return nil, 0, 0, err
		}
		return tracks, len(feedbackResp.Feedback), feedbackResp.TotalCount, nil
	}

	return nil, 0, 0, fmt.Errorf("ListenBrainz: max retries exceeded due to rate limiting")
}

// getSleepDuration calculates sleep duration from rate limit headers
func (lb *ListenBrainz) getSleepDuration(resp *http.Response) time.Duration {
	resetInStr := resp.Header.Get("X-RateLimit-Reset-In")
	if resetInStr != "" {
		if resetIn, err := strconv.Atoi(resetInStr); err == nil {
			return time.Duration(resetIn+5) * time.Second
		}
	}
	return 10 * time.Second
}

func (lb *ListenBrainz) sleep(ctx context.Context, d time.Duration) error {
	if lb.Sleep != nil {
		return lb.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ model.Source = &ListenBrainz{}
