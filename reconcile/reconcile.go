// Package reconcile brings remote playlists in line with the tracks matched
// for their local counterparts.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/csmith/cratesync/catalog"
	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/state"
)

// Service manages remote playlists
type Service interface {
	CreatePlaylist(ctx context.Context, name, description string) (string, error)
	PlaylistName(ctx context.Context, id string) (string, error)
	RenamePlaylist(ctx context.Context, id, name string) error
	PlaylistItems(ctx context.Context, id string) ([]string, error)
	AddItems(ctx context.Context, id string, uris []string) error
	RemoveItems(ctx context.Context, id string, uris []string) error
	ReplaceItems(ctx context.Context, id string, uris []string) error
}

// Action describes what happened (or would happen) to a remote playlist
type Action string

const (
	Created   Action = "created"
	Recreated Action = "recreated"
	Updated   Action = "updated"
	Replaced  Action = "replaced"
	Unchanged Action = "unchanged"
	Skipped   Action = "skipped"
)

// Result summarises a reconciliation
type Result struct {
	Action   Action
	RemoteID string

	Added     int
	Removed   int
	Unchanged int

	// MembersUnknown is set by Plan when the playlist's current contents
	// weren't recorded, so the counts assume it is empty.
	MembersUnknown bool
}

// Reconciler creates and updates remote playlists. Playlists are only ever
// identified through the state store: a remote playlist that merely has the
// right name is never adopted.
type Reconciler struct {
	Service Service
	State   state.Store

	// Prefix is prepended to playlist names, as "prefix / name".
	Prefix string

	// Incremental applies only the differences; otherwise the whole
	// playlist is replaced on every sync.
	Incremental bool

	now func() time.Time
}

// New creates a reconciler
func New(service Service, store state.Store, prefix string, incremental bool) *Reconciler {
	if store == nil {
		store = state.Discard
	}

	return &Reconciler{
		Service:     service,
		State:       store,
		Prefix:      prefix,
		Incremental: incremental,
		now:         time.Now,
	}
}

// DisplayName returns the remote name for a local playlist
func (r *Reconciler) DisplayName(name string) string {
	if r.Prefix == "" {
		return name
	}
	return r.Prefix + " / " + name
}

// Apply makes the remote playlist for the given local playlist contain
// exactly uris, and records the result.
func (r *Reconciler) Apply(ctx context.Context, playlist model.Playlist, uris []string) (Result, error) {
	uris = Dedupe(uris)
	name := r.DisplayName(playlist.Name)

	existing, ok := r.State.Get(playlist.Identity)
	if !ok {
		if len(uris) == 0 {
			slog.Info("Not creating playlist with no matched tracks", "playlist", name)
			return Result{Action: Skipped}, nil
		}
		return r.create(ctx, playlist, uris, Created)
	}

	current, err := r.Service.PlaylistName(ctx, existing.RemoteID)
	if errors.Is(err, catalog.ErrNotFound) {
		slog.Warn("Remote playlist has gone, recreating", "playlist", name, "id", existing.RemoteID)
		return r.create(ctx, playlist, uris, Recreated)
	}
	if err != nil {
		return Result{}, fmt.Errorf("checking playlist %s: %w", existing.RemoteID, err)
	}

	if current != name {
		slog.Info("Renaming playlist", "from", current, "to", name, "id", existing.RemoteID)
		if err := r.Service.RenamePlaylist(ctx, existing.RemoteID, name); err != nil {
			return Result{}, fmt.Errorf("renaming playlist %s: %w", existing.RemoteID, err)
		}
	}

	members := existing.MemberURIs
	if members == nil {
		slog.Debug("Playlist contents unknown, fetching", "playlist", name, "id", existing.RemoteID)
		members, err = r.Service.PlaylistItems(ctx, existing.RemoteID)
		if err != nil {
			return Result{}, fmt.Errorf("reading playlist %s: %w", existing.RemoteID, err)
		}
	}

	segments := Segment(uris, members)
	result := Result{
		RemoteID:  existing.RemoteID,
		Added:     len(segments.Missing),
		Removed:   len(segments.Extra),
		Unchanged: len(segments.Matched),
	}

	switch {
	case !r.Incremental:
		result.Action = Replaced
		if err := r.Service.ReplaceItems(ctx, existing.RemoteID, uris); err != nil {
			return Result{}, fmt.Errorf("replacing tracks in %s: %w", existing.RemoteID, err)
		}
	case len(segments.Missing) == 0 && len(segments.Extra) == 0:
		result.Action = Unchanged
	default:
		result.Action = Updated
		if err := r.Service.RemoveItems(ctx, existing.RemoteID, segments.Extra); err != nil {
			return Result{}, fmt.Errorf("removing tracks from %s: %w", existing.RemoteID, err)
		}
		if err := r.Service.AddItems(ctx, existing.RemoteID, segments.Missing); err != nil {
			return Result{}, fmt.Errorf("adding tracks to %s: %w", existing.RemoteID, err)
		}
	}

	slog.Debug("Reconciled playlist", "playlist", name, "action", result.Action, "added", result.Added, "removed", result.Removed)
	return result, r.record(playlist, existing.RemoteID, uris)
}

// Plan works out what Apply would do without contacting the service
func (r *Reconciler) Plan(playlist model.Playlist, uris []string) Result {
	uris = Dedupe(uris)

	existing, ok := r.State.Get(playlist.Identity)
	if !ok {
		if len(uris) == 0 {
			return Result{Action: Skipped}
		}
		return Result{Action: Created, Added: len(uris)}
	}

	segments := Segment(uris, existing.MemberURIs)
	result := Result{
		RemoteID:       existing.RemoteID,
		Added:          len(segments.Missing),
		Removed:        len(segments.Extra),
		Unchanged:      len(segments.Matched),
		MembersUnknown: existing.MemberURIs == nil,
	}

	switch {
	case !r.Incremental:
		result.Action = Replaced
	case !result.MembersUnknown && result.Added == 0 && result.Removed == 0:
		result.Action = Unchanged
	default:
		result.Action = Updated
	}
	return result
}

func (r *Reconciler) create(ctx context.Context, playlist model.Playlist, uris []string, action Action) (Result, error) {
	name := r.DisplayName(playlist.Name)

	id, err := r.Service.CreatePlaylist(ctx, name, playlist.Description())
	if err != nil {
		return Result{}, fmt.Errorf("creating playlist %q: %w", name, err)
	}
	slog.Info("Created playlist", "playlist", name, "id", id)

	// Recorded straight away with unknown contents, so a failure while
	// adding tracks doesn't leave an orphaned playlist behind.
	if err := r.record(playlist, id, nil); err != nil {
		return Result{}, err
	}

	if err := r.Service.AddItems(ctx, id, uris); err != nil {
		return Result{}, fmt.Errorf("adding tracks to %s: %w", id, err)
	}

	return Result{Action: action, RemoteID: id, Added: len(uris)}, r.record(playlist, id, uris)
}

// record stores the state of a playlist. A nil uris records the contents
// as unknown.
func (r *Reconciler) record(playlist model.Playlist, id string, uris []string) error {
	var members []string
	if uris != nil {
		members = append(make([]string, 0, len(uris)), uris...)
	}

	r.State.Put(playlist.Identity, state.Playlist{
		RemoteID:    id,
		DisplayName: r.DisplayName(playlist.Name),
		SourcePath:  playlist.Identity,
		MemberURIs:  members,
		LastSynced:  r.now().UTC(),
		PrefixUsed:  r.Prefix,
		SourceType:  playlist.SourceType,
	})

	if err := r.State.Save(); err != nil {
		return fmt.Errorf("saving playlist state: %w", err)
	}
	return nil
}
