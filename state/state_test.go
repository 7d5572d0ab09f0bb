package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/snapshot"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	synced := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	f, result := Open(path)
	assert.Equal(t, snapshot.Missing, result.Status)

	f.Put("House/Deep", Playlist{
		RemoteID:    "abc",
		DisplayName: "djs / Deep",
		SourcePath:  "House/Deep",
		MemberURIs:  []string{"spotify:track:1", "spotify:track:2"},
		LastSynced:  synced,
		PrefixUsed:  "djs",
		SourceType:  model.SourceRekordbox,
	})
	f.Put("Empty", Playlist{RemoteID: "def", MemberURIs: []string{}, SourceType: model.SourceBeatport})
	require.NoError(t, f.Save())

	reopened, result := Open(path)
	require.Equal(t, snapshot.Loaded, result.Status)
	assert.Equal(t, []string{"Empty", "House/Deep"}, reopened.Identities())

	deep, ok := reopened.Get("House/Deep")
	require.True(t, ok)
	assert.Equal(t, "abc", deep.RemoteID)
	assert.Equal(t, []string{"spotify:track:1", "spotify:track:2"}, deep.MemberURIs)
	assert.True(t, deep.LastSynced.Equal(synced))

	empty, ok := reopened.Get("Empty")
	require.True(t, ok)
	assert.NotNil(t, empty.MemberURIs, "an empty playlist is known to be empty")
	assert.Empty(t, empty.MemberURIs)

	_, ok = reopened.Get("Unknown")
	assert.False(t, ok)
}

func TestOpen_Degraded(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "corrupt", content: "nope"},
		{name: "future version", content: `{"version": 3, "entries": {}}`},
		{name: "v1 without ids", content: `{"version": 1, "entries": {"x": {"spotify_name": "x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			f, result := Open(path)
			assert.Equal(t, snapshot.Degraded, result.Status)
			assert.Empty(t, f.Identities())
		})
	}
}

func TestMigrateV1(t *testing.T) {
	v1 := `{
		"version": 1,
		"entries": {
			"Deep": {
				"spotify_id": "abc",
				"spotify_name": "djsupport / Deep",
				"rekordbox_path": "House/Deep",
				"last_synced": "2024-05-06T07:08:09.123456",
				"prefix_used": "djsupport"
			},
			"Chart": {
				"spotify_id": "def",
				"spotify_name": "Chart",
				"source_path": "https://www.beatport.com/chart/x/1",
				"last_synced": "2024-05-06T07:08:09",
				"prefix_used": null,
				"source_type": "beatport"
			},
			"Loose": {
				"spotify_id": "ghi",
				"spotify_name": "Loose",
				"last_synced": "garbage"
			}
		}
	}`

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(v1), 0o600))

	f, result := Open(path)
	require.Equal(t, snapshot.Loaded, result.Status)
	assert.Equal(t, 1, result.Version)

	deep, ok := f.Get("House/Deep")
	require.True(t, ok)
	assert.Equal(t, "abc", deep.RemoteID)
	assert.Equal(t, "djsupport / Deep", deep.DisplayName)
	assert.Equal(t, "House/Deep", deep.SourcePath)
	assert.Equal(t, "djsupport", deep.PrefixUsed)
	assert.Equal(t, model.SourceRekordbox, deep.SourceType)
	assert.Nil(t, deep.MemberURIs)
	assert.Equal(t, 2024, deep.LastSynced.Year())
	assert.Equal(t, 9, deep.LastSynced.Second())

	chart, ok := f.Get("https://www.beatport.com/chart/x/1")
	require.True(t, ok)
	assert.Equal(t, model.SourceBeatport, chart.SourceType)
	assert.Empty(t, chart.PrefixUsed)
	assert.Nil(t, chart.MemberURIs)

	loose, ok := f.Get("Loose")
	require.True(t, ok)
	assert.Equal(t, "Loose", loose.SourcePath)
	assert.True(t, loose.LastSynced.IsZero())
}

func TestMigrateV1_Standalone(t *testing.T) {
	migrated, err := migrateV1(json.RawMessage(`{"A": {"spotify_id": "1", "spotify_name": "A", "rekordbox_path": "A"}}`))
	require.NoError(t, err)

	var entries map[string]Playlist
	require.NoError(t, json.Unmarshal(migrated, &entries))
	assert.Equal(t, "1", entries["A"].RemoteID)
	assert.Nil(t, entries["A"].MemberURIs)

	_, err = migrateV1(json.RawMessage(`[]`))
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	Discard.Put("x", Playlist{RemoteID: "1"})
	_, ok := Discard.Get("x")
	assert.False(t, ok)
	assert.NoError(t, Discard.Save())
}
