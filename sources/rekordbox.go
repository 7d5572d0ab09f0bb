package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/csmith/cratesync/model"
)

// ErrPlaylistNotFound is returned when a requested playlist is not in the library
var ErrPlaylistNotFound = errors.New("playlist not found")

// Rekordbox is a source that reads playlists from a Rekordbox XML library export
type Rekordbox struct {
	Path string

	// Playlist restricts the source to playlists with this name or folder
	// path. Empty means every playlist.
	Playlist string
}

type rekordboxDocument struct {
	Collection struct {
		Tracks []rekordboxTrack `xml:"TRACK"`
	} `xml:"COLLECTION"`
	Playlists struct {
		Root *rekordboxNode `xml:"NODE"`
	} `xml:"PLAYLISTS"`
}

type rekordboxTrack struct {
	TrackID   string `xml:"TrackID,attr"`
	Name      string `xml:"Name,attr"`
	Artist    string `xml:"Artist,attr"`
	Album     string `xml:"Album,attr"`
	Remixer   string `xml:"Remixer,attr"`
	Label     string `xml:"Label,attr"`
	Genre     string `xml:"Genre,attr"`
	DateAdded string `xml:"DateAdded,attr"`
	TotalTime string `xml:"TotalTime,attr"`
}

type rekordboxNode struct {
	Type   string          `xml:"Type,attr"`
	Name   string          `xml:"Name,attr"`
	Nodes  []rekordboxNode `xml:"NODE"`
	Tracks []struct {
		Key string `xml:"Key,attr"`
	} `xml:"TRACK"`
}

// Playlists parses the library and returns its playlists in tree order,
// named by their folder path
func (r *Rekordbox) Playlists(_ context.Context) ([]model.Playlist, error) {
	tracks, playlists, err := r.parse()
	if err != nil {
		return nil, err
	}

	slog.Debug("Parsed Rekordbox library", "tracks", len(tracks), "playlists", len(playlists), "path", r.Path)

	var res []model.Playlist
	for _, p := range playlists {
		if r.Playlist != "" && p.name != r.Playlist && p.path != r.Playlist {
			continue
		}

		playlist := model.Playlist{
			Name:       p.name,
			Identity:   p.path,
			SourceType: model.SourceRekordbox,
			Tracks:     make([]model.LocalTrack, 0, len(p.keys)),
		}
		for _, key := range p.keys {
			track, ok := tracks[key]
			if !ok {
				slog.Debug("Playlist references unknown track", "playlist", p.path, "key", key)
				continue
			}
			playlist.Tracks = append(playlist.Tracks, track)
		}
		res = append(res, playlist)
	}

	if r.Playlist != "" && len(res) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, r.Playlist)
	}

	return res, nil
}

type rekordboxPlaylist struct {
	name string
	path string
	keys []string
}

func (r *Rekordbox) parse() (map[string]model.LocalTrack, []rekordboxPlaylist, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var doc rekordboxDocument
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrParse, r.Path, err)
	}

	tracks := make(map[string]model.LocalTrack, len(doc.Collection.Tracks))
	for _, t := range doc.Collection.Tracks {
		duration, _ := strconv.Atoi(t.TotalTime)
		tracks[t.TrackID] = model.LocalTrack{
			ID:        t.TrackID,
			Artist:    t.Artist,
			Title:     t.Name,
			Remixer:   t.Remixer,
			Album:     t.Album,
			Label:     t.Label,
			Genre:     t.Genre,
			DateAdded: t.DateAdded,
			Duration:  duration,
		}
	}

	var playlists []rekordboxPlaylist
	if doc.Playlists.Root != nil {
		walk(doc.Playlists.Root, "", &playlists)
	}
	return tracks, playlists, nil
}

// walk visits the playlist tree depth first. Folders (type 0) contribute
// their name to the path of their children, except the ROOT folder.
func walk(node *rekordboxNode, parent string, playlists *[]rekordboxPlaylist) {
	path := node.Name
	if parent != "" {
		path = parent + "/" + node.Name
	}

	switch node.Type {
	case "0":
		if node.Name == "ROOT" {
			path = ""
		}
		for i := range node.Nodes {
			walk(&node.Nodes[i], path, playlists)
		}
	case "1":
		var keys []string
		for _, t := range node.Tracks {
			if t.Key != "" {
				keys = append(keys, t.Key)
			}
		}
		*playlists = append(*playlists, rekordboxPlaylist{name: node.Name, path: path, keys: keys})
	}
}

var _ model.Source = &Rekordbox{}
