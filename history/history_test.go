package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/csmith/cratesync/model"
	"github.com/csmith/cratesync/reconcile"
	"github.com/csmith/cratesync/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	started := time.Date(2025, 4, 5, 6, 7, 8, 0, time.UTC)

	first := &report.Run{
		Started:   started,
		Threshold: 80,
		Playlists: []*report.Playlist{
			{
				Name:       "Deep",
				Identity:   "House/Deep",
				SourceType: model.SourceRekordbox,
				Tracks: []report.Track{
					{Outcome: &model.Outcome{URI: "a", Score: 90}},
					{Outcome: &model.Outcome{URI: "b", Score: 85, MatchType: model.FallbackVersion}},
					{},
				},
				Reconcile: reconcile.Result{Action: reconcile.Created, Added: 2},
			},
			{
				Name:      "Empty",
				Identity:  "Empty",
				Reconcile: reconcile.Result{Action: reconcile.Skipped},
			},
		},
	}

	firstID, err := db.Record(ctx, first, started.Add(time.Minute))
	require.NoError(t, err)

	second := &report.Run{
		Started:   started.Add(time.Hour),
		Threshold: 85,
		DryRun:    true,
		Err:       errors.New("rate limited"),
	}
	secondID, err := db.Record(ctx, second, started.Add(time.Hour+time.Second))
	require.NoError(t, err)
	assert.Greater(t, secondID, firstID)

	runs, err := db.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, secondID, runs[0].ID)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, "rate limited", runs[0].Error)
	assert.Equal(t, 0, runs[0].Playlists)

	assert.Equal(t, firstID, runs[1].ID)
	assert.True(t, runs[1].Started.Equal(started))
	assert.True(t, runs[1].Finished.Equal(started.Add(time.Minute)))
	assert.Equal(t, 80, runs[1].Threshold)
	assert.Equal(t, 2, runs[1].Playlists)
	assert.Equal(t, 2, runs[1].Matched)
	assert.Equal(t, 1, runs[1].Unresolved)
	assert.Equal(t, 2, runs[1].Added)
	assert.Empty(t, runs[1].Error)
}

func TestRecent_Limit(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := db.Record(ctx, &report.Run{Started: time.Unix(int64(1000+i), 0)}, time.Unix(int64(2000+i), 0))
		require.NoError(t, err)
	}

	runs, err := db.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, int64(1004), runs[0].Started.Unix())
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Record(context.Background(), &report.Run{Started: time.Now()}, time.Now())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
