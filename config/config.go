// Package config stores settings remembered between runs.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csmith/cratesync/snapshot"
)

// Format is the on-disk config format
var Format = snapshot.Format{
	Name:    "config",
	Version: 1,
}

// Settings are the remembered values
type Settings struct {
	LibraryPath string    `json:"library_path,omitempty"`
	LibrarySet  time.Time `json:"library_set,omitempty"`
}

// Config is a settings file
type Config struct {
	path     string
	Settings Settings
}

// Load reads the config file at path. Missing or unusable files give empty
// settings.
func Load(path string) *Config {
	c := &Config{path: path}
	snapshot.Load(Format, path, &c.Settings)
	return c
}

// SetLibrary remembers the Rekordbox library path
func (c *Config) SetLibrary(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return err
	}

	c.Settings.LibraryPath = abs
	c.Settings.LibrarySet = time.Now().UTC()
	return nil
}

// Save writes the config file
func (c *Config) Save() error {
	return snapshot.Save(Format, c.path, c.Settings)
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ValidateLibrary checks that path is a readable Rekordbox XML export
func ValidateLibrary(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: %s", expanded)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a file: %s", expanded)
	}

	f, err := os.Open(expanded)
	if err != nil {
		return fmt.Errorf("unable to read file: %w", err)
	}
	defer f.Close()

	return checkLibraryStructure(f)
}

// checkLibraryStructure looks for a COLLECTION or PLAYLISTS element directly
// under the root element
func checkLibraryStructure(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	depth := 0

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("invalid XML: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && (t.Name.Local == "COLLECTION" || t.Name.Local == "PLAYLISTS") {
				return nil
			}
		case xml.EndElement:
			depth--
		}
	}

	return errors.New("XML parsed, but missing Rekordbox COLLECTION/PLAYLISTS nodes")
}
