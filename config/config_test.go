package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	c := Load(path)
	assert.Empty(t, c.Settings.LibraryPath)

	require.NoError(t, c.SetLibrary(filepath.Join(dir, "rekordbox.xml")))
	require.NoError(t, c.Save())

	reloaded := Load(path)
	assert.Equal(t, filepath.Join(dir, "rekordbox.xml"), reloaded.Settings.LibraryPath)
	assert.False(t, reloaded.Settings.LibrarySet.IsZero())
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	c := Load(path)
	assert.Empty(t, c.Settings.LibraryPath)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		input    string
		expected string
	}{
		{input: "/abs/path.xml", expected: "/abs/path.xml"},
		{input: "relative.xml", expected: "relative.xml"},
		{input: "~", expected: home},
		{input: "~/Music/rekordbox.xml", expected: filepath.Join(home, "Music", "rekordbox.xml")},
		{input: "~other/file", expected: "~other/file"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			actual, err := ExpandPath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestValidateLibrary(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "collection",
			content: `<?xml version="1.0"?><DJ_PLAYLISTS Version="1.0.0"><PRODUCT Name="rekordbox"/><COLLECTION Entries="0"></COLLECTION></DJ_PLAYLISTS>`,
		},
		{
			name:    "playlists only",
			content: `<DJ_PLAYLISTS><PLAYLISTS><NODE Type="0" Name="ROOT"/></PLAYLISTS></DJ_PLAYLISTS>`,
		},
		{
			name:    "wrong structure",
			content: `<DJ_PLAYLISTS><OTHER><COLLECTION/></OTHER></DJ_PLAYLISTS>`,
			wantErr: "missing Rekordbox",
		},
		{
			name:    "invalid XML",
			content: `<DJ_PLAYLISTS><COLLEC`,
			wantErr: "invalid XML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "library.xml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			err := ValidateLibrary(path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateLibrary_NotAFile(t *testing.T) {
	dir := t.TempDir()

	err := ValidateLibrary(filepath.Join(dir, "missing.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	err = ValidateLibrary(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a file")
}
