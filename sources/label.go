package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/csmith/cratesync/model"
)

const (
	labelPageSize = 150
	labelMaxPages = 100
)

var (
	// ErrTooLarge is returned when a label has more tracks than the caller allowed
	ErrTooLarge = errors.New("label too large")

	labelPattern = regexp.MustCompile(`^https://(www\.)?beatport\.com/label/[\w-]+/\d+(/tracks)?/?$`)
)

// BeatportLabel is a source that scrapes every track released on a Beatport label
type BeatportLabel struct {
	URL    string
	Client *http.Client

	// MaxTracks aborts the fetch when the label claims more tracks than this.
	// Zero means no limit.
	MaxTracks int
}

// NewBeatportLabel validates a label URL and returns a source for it
func NewBeatportLabel(url string, maxTracks int) (*BeatportLabel, error) {
	canonical, err := LabelURL(url)
	if err != nil {
		return nil, err
	}
	return &BeatportLabel{URL: canonical, MaxTracks: maxTracks}, nil
}

// LabelURL normalises a label URL (with or without a /tracks suffix) to the
// label's base URL
func LabelURL(url string) (string, error) {
	url, _, _ = strings.Cut(url, "?")
	url, _, _ = strings.Cut(url, "#")
	url = strings.TrimRight(url, "/")
	if !labelPattern.MatchString(url) {
		return "", fmt.Errorf("%w: %s is not a Beatport label, expected https://www.beatport.com/label/<name>/<id>", ErrInvalidURL, url)
	}
	return strings.TrimSuffix(url, "/tracks"), nil
}

// Playlists fetches every page of the label's tracks, newest first, and
// returns them as a single playlist with duplicate releases removed. If a
// page after the first fails, the tracks fetched so far are returned.
func (l *BeatportLabel) Playlists(ctx context.Context) ([]model.Playlist, error) {
	slog.Debug("Retrieving label tracks", "url", l.URL, "source", "label")

	name, tracks, total, err := l.page(ctx, 1)
	if err != nil {
		return nil, err
	}

	playlist := model.Playlist{
		Name:       name,
		Identity:   l.URL,
		SourceType: model.SourceLabel,
	}

	if len(tracks) == 0 {
		slog.Warn("Label has no tracks", "label", name, "url", l.URL)
		playlist.Tracks = []model.LocalTrack{}
		return []model.Playlist{playlist}, nil
	}

	if l.MaxTracks > 0 && total > l.MaxTracks {
		return nil, fmt.Errorf("%w: %s has %d tracks, more than the limit of %d", ErrTooLarge, name, total, l.MaxTracks)
	}

	pages := min((total+labelPageSize-1)/labelPageSize, labelMaxPages)
	slog.Debug("Retrieved label page", "page", 1, "pages", pages, "total", total, "source", "label")

	for page := 2; page <= pages; page++ {
		_, more, _, err := l.page(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Failed to retrieve label page, continuing with partial results", "page", page, "pages", pages, "error", err)
			break
		}
		tracks = append(tracks, more...)
		slog.Debug("Retrieved label page", "page", page, "pages", pages, "source", "label")
	}

	unique := dedupeTracks(tracks)
	if removed := len(tracks) - len(unique); removed > 0 {
		slog.Info("Removed duplicate label tracks", "label", name, "removed", removed)
	}

	playlist.Tracks = unique
	return []model.Playlist{playlist}, nil
}

func (l *BeatportLabel) page(ctx context.Context, n int) (string, []model.LocalTrack, int, error) {
	url := fmt.Sprintf("%s/tracks?page=%d&per_page=%d", l.URL, n, labelPageSize)
	page, err := fetchPage(ctx, httpClient(l.Client), url, "beatport.com/label/")
	if err != nil {
		return "", nil, 0, err
	}

	data, err := extractNextData(page)
	if err != nil {
		return "", nil, 0, err
	}

	name := data.Props.PageProps.Label.Name
	if name == "" {
		name = "Unknown Label"
	}

	results, total, ok := findTrackResults(data)
	if !ok {
		return "", nil, 0, fmt.Errorf("%w: label page has %d queries but none contained tracks", ErrParse, len(data.Props.PageProps.DehydratedState.Queries))
	}

	tracks := make([]model.LocalTrack, 0, len(results))
	for i, r := range results {
		tracks = append(tracks, r.localTrack("bp-label-", (n-1)*labelPageSize+i, isOriginal))
	}
	return name, tracks, total, nil
}

func isOriginal(mix string) bool {
	return mix == "Original Mix" || mix == "Original"
}

// dedupeTracks keeps the first occurrence of each artist and title pair,
// ignoring case and surrounding whitespace
func dedupeTracks(tracks []model.LocalTrack) []model.LocalTrack {
	type key struct{ artist, title string }

	seen := make(map[key]bool, len(tracks))
	res := make([]model.LocalTrack, 0, len(tracks))
	for _, t := range tracks {
		k := key{strings.ToLower(strings.TrimSpace(t.Artist)), strings.ToLower(strings.TrimSpace(t.Title))}
		if seen[k] {
			continue
		}
		seen[k] = true
		res = append(res, t)
	}
	return res
}

var _ model.Source = &BeatportLabel{}
