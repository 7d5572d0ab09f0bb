package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/csmith/cratesync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLibrary = `<?xml version="1.0" encoding="UTF-8"?>
<DJ_PLAYLISTS Version="1.0.0">
  <PRODUCT Name="rekordbox" Version="6.8.0" Company="AlphaTheta"/>
  <COLLECTION Entries="3">
    <TRACK TrackID="1" Name="Strobe" Artist="deadmau5" Album="For Lack of a Better Name" Remixer="" Label="mau5trap" Genre="Progressive House" DateAdded="2024-03-15" TotalTime="637"/>
    <TRACK TrackID="2" Name="Opus" Artist="Eric Prydz" Album="Opus" Label="Virgin" Genre="Progressive House" DateAdded="2024-03-16" TotalTime="543"/>
    <TRACK TrackID="3" Name="Für Immer (Dixon Remix)" Artist="Âme" Remixer="Dixon" Genre="Deep House" TotalTime=""/>
  </COLLECTION>
  <PLAYLISTS>
    <NODE Type="0" Name="ROOT" Count="2">
      <NODE Type="1" Name="Warmup" KeyType="0" Entries="2">
        <TRACK Key="2"/>
        <TRACK Key="1"/>
      </NODE>
      <NODE Type="0" Name="Gigs" Count="1">
        <NODE Type="0" Name="2024" Count="1">
          <NODE Type="1" Name="Peak" KeyType="0" Entries="3">
            <TRACK Key="3"/>
            <TRACK Key="99"/>
            <TRACK Key=""/>
          </NODE>
        </NODE>
      </NODE>
      <NODE Type="1" Name="Empty" KeyType="0" Entries="0"/>
    </NODE>
  </PLAYLISTS>
</DJ_PLAYLISTS>
`

func writeLibrary(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rekordbox.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRekordbox_Playlists(t *testing.T) {
	source := &Rekordbox{Path: writeLibrary(t, testLibrary)}

	playlists, err := source.Playlists(context.Background())
	require.NoError(t, err)
	require.Len(t, playlists, 3)

	assert.Equal(t, "Warmup", playlists[0].Name)
	assert.Equal(t, "Warmup", playlists[0].Identity)
	assert.Equal(t, model.SourceRekordbox, playlists[0].SourceType)
	require.Len(t, playlists[0].Tracks, 2)
	assert.Equal(t, model.LocalTrack{
		ID:        "2",
		Artist:    "Eric Prydz",
		Title:     "Opus",
		Album:     "Opus",
		Label:     "Virgin",
		Genre:     "Progressive House",
		DateAdded: "2024-03-16",
		Duration:  543,
	}, playlists[0].Tracks[0])
	assert.Equal(t, "Strobe", playlists[0].Tracks[1].Title)
	assert.Equal(t, 637, playlists[0].Tracks[1].Duration)

	assert.Equal(t, "Peak", playlists[1].Name)
	assert.Equal(t, "Gigs/2024/Peak", playlists[1].Identity)
	require.Len(t, playlists[1].Tracks, 1, "unknown and empty keys are skipped")
	assert.Equal(t, "Dixon", playlists[1].Tracks[0].Remixer)
	assert.Equal(t, 0, playlists[1].Tracks[0].Duration)

	assert.Equal(t, "Empty", playlists[2].Name)
	assert.Empty(t, playlists[2].Tracks)
}

func TestRekordbox_Filter(t *testing.T) {
	path := writeLibrary(t, testLibrary)

	tests := []struct {
		name     string
		filter   string
		wantPath string
		wantErr  error
	}{
		{name: "by name", filter: "Peak", wantPath: "Gigs/2024/Peak"},
		{name: "by path", filter: "Gigs/2024/Peak", wantPath: "Gigs/2024/Peak"},
		{name: "folder names are not playlists", filter: "Gigs", wantErr: ErrPlaylistNotFound},
		{name: "unknown", filter: "Closing", wantErr: ErrPlaylistNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playlists, err := (&Rekordbox{Path: path, Playlist: tt.filter}).Playlists(context.Background())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			require.Len(t, playlists, 1)
			assert.Equal(t, tt.wantPath, playlists[0].Identity)
		})
	}
}

func TestRekordbox_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := (&Rekordbox{Path: filepath.Join(t.TempDir(), "nope.xml")}).Playlists(context.Background())
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid xml", func(t *testing.T) {
		_, err := (&Rekordbox{Path: writeLibrary(t, "<DJ_PLAYLISTS><COLLECTION>")}).Playlists(context.Background())
		assert.True(t, errors.Is(err, ErrParse))
	})

	t.Run("no playlists", func(t *testing.T) {
		playlists, err := (&Rekordbox{Path: writeLibrary(t, `<DJ_PLAYLISTS><COLLECTION/></DJ_PLAYLISTS>`)}).Playlists(context.Background())
		require.NoError(t, err)
		assert.Empty(t, playlists)
	})
}
