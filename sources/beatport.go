package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/goccy/go-json"
)

const (
	userAgent   = "Mozilla/5.0 (compatible; cratesync)"
	maxPageSize = 5 * 1024 * 1024
)

var (
	// ErrParse is returned when a library or page does not have the expected structure
	ErrParse = errors.New("unable to parse")
	// ErrInvalidURL is returned when a URL does not identify a supported page
	ErrInvalidURL = errors.New("invalid url")

	chartPattern    = regexp.MustCompile(`^https://(www\.)?beatport\.com/chart/[\w-]+/\d+/?$`)
	nextDataPattern = regexp.MustCompile(`(?s)<script\s+id="__NEXT_DATA__"\s*[^>]*>(.*?)</script>`)

	defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}
)

// Beatport is a source that scrapes a single Beatport DJ chart
type Beatport struct {
	URL    string
	Client *http.Client
}

// NewBeatport validates a chart URL and returns a source for it
func NewBeatport(url string) (*Beatport, error) {
	canonical, err := ChartURL(url)
	if err != nil {
		return nil, err
	}
	return &Beatport{URL: canonical}, nil
}

// ChartURL strips the query and trailing slash from a chart URL and checks
// that it looks like a Beatport chart
func ChartURL(url string) (string, error) {
	url, _, _ = strings.Cut(url, "?")
	url = strings.TrimRight(url, "/")
	if !chartPattern.MatchString(url) {
		return "", fmt.Errorf("%w: %s is not a Beatport chart, expected https://www.beatport.com/chart/<name>/<id>", ErrInvalidURL, url)
	}
	return url, nil
}

// Playlists fetches the chart and returns it as a single playlist in chart order
func (b *Beatport) Playlists(ctx context.Context) ([]model.Playlist, error) {
	slog.Debug("Retrieving chart", "url", b.URL, "source", "beatport")

	page, err := fetchPage(ctx, httpClient(b.Client), b.URL, "beatport.com/chart/")
	if err != nil {
		return nil, err
	}

	data, err := extractNextData(page)
	if err != nil {
		return nil, err
	}

	results, _, ok := findTrackResults(data)
	if !ok || len(results) == 0 {
		return nil, fmt.Errorf("%w: chart page has %d queries but none contained tracks", ErrParse, len(data.Props.PageProps.DehydratedState.Queries))
	}

	tracks := make([]model.LocalTrack, 0, len(results))
	for i, r := range results {
		tracks = append(tracks, r.localTrack("bp-", i, isOriginalMix))
	}

	name := data.Props.PageProps.Chart.Name
	if name == "" {
		name = "Unknown Chart"
	}

	slog.Debug("Retrieved chart", "name", name, "tracks", len(tracks), "source", "beatport")
	return []model.Playlist{{
		Name:       name,
		Identity:   b.URL,
		SourceType: model.SourceBeatport,
		Tracks:     tracks,
	}}, nil
}

type nextData struct {
	Props struct {
		PageProps struct {
			Chart struct {
				Name string `json:"name"`
			} `json:"chart"`
			Label struct {
				Name string `json:"name"`
			} `json:"label"`
			DehydratedState struct {
				Queries []json.RawMessage `json:"queries"`
			} `json:"dehydratedState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type beatportTrack struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	MixName string `json:"mix_name"`
	Length  string `json:"length"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Release struct {
		Name  string `json:"name"`
		Label struct {
			Name string `json:"name"`
		} `json:"label"`
	} `json:"release"`
	Genre struct {
		Name string `json:"name"`
	} `json:"genre"`
	PublishDate    string `json:"publish_date"`
	NewReleaseDate string `json:"new_release_date"`
}

// localTrack converts a listing entry, appending the mix name to the title
// unless skipMix says it adds nothing
func (t beatportTrack) localTrack(prefix string, position int, skipMix func(string) bool) model.LocalTrack {
	var artists []string
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	title := t.Name
	if t.MixName != "" && !skipMix(t.MixName) {
		title = fmt.Sprintf("%s (%s)", title, t.MixName)
	}

	id := int64(position)
	if t.ID != 0 {
		id = t.ID
	}

	dateAdded := t.PublishDate
	if dateAdded == "" {
		dateAdded = t.NewReleaseDate
	}

	return model.LocalTrack{
		ID:        prefix + strconv.FormatInt(id, 10),
		Artist:    strings.Join(artists, ", "),
		Title:     title,
		Album:     t.Release.Name,
		Label:     t.Release.Label.Name,
		Genre:     t.Genre.Name,
		DateAdded: dateAdded,
		Duration:  parseDuration(t.Length),
	}
}

func isOriginalMix(mix string) bool {
	return mix == "Original Mix"
}

// fetchPage downloads a page, refusing oversized responses, redirects away
// from pages containing wantPrefix, and anti-bot challenges
func fetchPage(ctx context.Context, client *http.Client, url, wantPrefix string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPageSize {
		return nil, fmt.Errorf("%w: response from %s is too large to be a Beatport page", ErrParse, url)
	}

	if final := resp.Request.URL.String(); !strings.Contains(final, wantPrefix) {
		return nil, fmt.Errorf("%w: Beatport redirected to an unexpected URL: %s", ErrParse, final)
	}

	if challenged(body) {
		return nil, fmt.Errorf("%w: Beatport returned an anti-bot challenge page, try again in a few minutes", ErrParse)
	}

	return body, nil
}

func challenged(page []byte) bool {
	s := string(page)
	return strings.Contains(s, "/human-test/") || strings.Contains(s, "findProof")
}

func extractNextData(page []byte) (*nextData, error) {
	m := nextDataPattern.FindSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("%w: no page data found, Beatport may have changed their page structure", ErrParse)
	}

	data := &nextData{}
	if err := json.Unmarshal(m[1], data); err != nil {
		return nil, fmt.Errorf("%w: invalid page data: %v", ErrParse, err)
	}
	return data, nil
}

type beatportQuery struct {
	State struct {
		Data struct {
			Results []json.RawMessage `json:"results"`
			Count   *int              `json:"count"`
		} `json:"data"`
	} `json:"state"`
}

// findTrackResults locates the query whose results look like tracks. It
// returns the decoded tracks, the total count the page claims, and whether
// any track listing (possibly empty) was present.
func findTrackResults(data *nextData) ([]beatportTrack, int, bool) {
	var empty bool
	for _, raw := range data.Props.PageProps.DehydratedState.Queries {
		var q beatportQuery
		if err := json.Unmarshal(raw, &q); err != nil {
			continue
		}

		results := q.State.Data.Results
		if results == nil {
			continue
		}
		if len(results) == 0 {
			empty = true
			continue
		}

		var first map[string]json.RawMessage
		if err := json.Unmarshal(results[0], &first); err != nil {
			continue
		}
		if _, ok := first["artists"]; !ok {
			continue
		}

		tracks := make([]beatportTrack, 0, len(results))
		for _, r := range results {
			var t beatportTrack
			if err := json.Unmarshal(r, &t); err != nil {
				slog.Debug("Skipping malformed track entry", "error", err, "source", "beatport")
				continue
			}
			tracks = append(tracks, t)
		}

		count := len(results)
		if q.State.Data.Count != nil {
			count = *q.State.Data.Count
		}
		return tracks, count, true
	}
	return nil, 0, empty
}

// parseDuration converts "m:ss" or "h:mm:ss" into seconds, returning zero
// for anything else
func parseDuration(length string) int {
	parts := strings.Split(length, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return defaultHTTPClient
}

var _ model.Source = &Beatport{}
