// Package snapshot reads and writes the versioned JSON files used to persist
// state between runs.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Status describes how a snapshot was loaded
type Status int

const (
	// Missing means there was no file; the caller starts empty.
	Missing Status = iota
	// Loaded means the file was read, and migrated if necessary.
	Loaded
	// Degraded means the file existed but couldn't be used; the caller
	// starts empty and the file will be overwritten on the next save.
	Degraded
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Loaded:
		return "loaded"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of loading a snapshot
type Result struct {
	Status Status

	// Version is the version the file was written with, if it could be read.
	Version int

	// Reason explains a Degraded result.
	Reason string
}

// Migration upgrades snapshot entries from one version to the next
type Migration func(entries json.RawMessage) (json.RawMessage, error)

// Format describes a persisted file type
type Format struct {
	Name    string
	Version int

	// Migrations are keyed by the version they upgrade from.
	Migrations map[int]Migration
}

type envelope struct {
	Version int             `json:"version"`
	Entries json.RawMessage `json:"entries"`
}

// Load reads the snapshot at path into entries. entries is only modified if
// the result is Loaded. Problems with the file are never returned as errors:
// they produce a Degraded result, which is logged.
func Load[T any](format Format, path string, entries *T) Result {
	result := load(format, path, entries)
	if result.Status == Degraded {
		slog.Warn("Ignoring unusable file", "type", format.Name, "path", path, "version", result.Version, "reason", result.Reason)
	}
	return result
}

func load[T any](format Format, path string, entries *T) Result {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{Status: Missing}
	}
	if err != nil {
		return Result{Status: Degraded, Reason: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Result{Status: Degraded, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	raw, err := format.migrate(env.Version, env.Entries)
	if err != nil {
		return Result{Status: Degraded, Version: env.Version, Reason: err.Error()}
	}

	var decoded T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return Result{Status: Degraded, Version: env.Version, Reason: fmt.Sprintf("invalid entries: %v", err)}
		}
	}

	*entries = decoded
	return Result{Status: Loaded, Version: env.Version}
}

// migrate upgrades entries written at version to the current version
func (f Format) migrate(version int, entries json.RawMessage) (json.RawMessage, error) {
	if version < 1 || version > f.Version {
		return nil, fmt.Errorf("unsupported version %d", version)
	}

	for v := version; v < f.Version; v++ {
		migration, ok := f.Migrations[v]
		if !ok {
			return nil, fmt.Errorf("no migration from version %d", v)
		}

		var err error
		entries, err = migration(entries)
		if err != nil {
			return nil, fmt.Errorf("migrating from version %d: %w", v, err)
		}
	}

	return entries, nil
}

// Save writes entries to path at the current version. The file is replaced
// atomically, so a crash never leaves a truncated snapshot behind.
func Save[T any](format Format, path string, entries T) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format.Name, err)
	}

	data, err := json.MarshalIndent(envelope{Version: format.Version, Entries: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format.Name, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
