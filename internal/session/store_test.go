package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/reelbot/reelbot/internal/database"
	"github.com/reelbot/reelbot/internal/media"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "reelbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewStore(db.Conn(), zerolog.Nop())
}

func testCandidates() []media.Candidate {
	return []media.Candidate{
		{Kind: media.KindMovie, ID: 603, TmdbID: 603, Title: "The Matrix", Year: 1999},
		{Kind: media.KindMovie, ID: 604, TmdbID: 604, Title: "The Matrix Reloaded", Year: 2003},
		{Kind: media.KindMovie, ID: 605, TmdbID: 605, Title: "The Matrix Revolutions", Year: 2003},
	}
}

func TestStore_ReadAndEvictConsumesOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)

	got := store.ReadAndEvict(ctx, 100, 1)
	require.NotNil(t, got)
	require.Equal(t, "The Matrix Reloaded", got.Title)

	// same index never reads twice successfully
	require.Nil(t, store.ReadAndEvict(ctx, 100, 1))

	// other indices are untouched
	require.NotNil(t, store.ReadAndEvict(ctx, 100, 0))
	require.NotNil(t, store.ReadAndEvict(ctx, 100, 2))
}

func TestStore_ReadMissingIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, store.ReadAndEvict(ctx, 100, 0))

	_, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)
	require.Nil(t, store.ReadAndEvict(ctx, 100, 99))
}

func TestStore_ClearDropsWholeSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)

	store.Clear(ctx, 100)

	for idx := range testCandidates() {
		require.Nil(t, store.ReadAndEvict(ctx, 100, idx))
	}

	// clearing an already-empty session is fine
	store.Clear(ctx, 100)
}

func TestStore_WriteReplacesPreviousSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)

	_, err = store.Write(ctx, 100, []media.Candidate{
		{Kind: media.KindSeries, ID: 1438, TmdbID: 1438, Title: "The Wire", Year: 2002},
	})
	require.NoError(t, err)

	got := store.ReadAndEvict(ctx, 100, 0)
	require.NotNil(t, got)
	require.Equal(t, "The Wire", got.Title)

	// nothing of the old session survives past the new length
	require.Nil(t, store.ReadAndEvict(ctx, 100, 1))
	require.Nil(t, store.ReadAndEvict(ctx, 100, 2))
}

func TestStore_SessionsAreChatScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)
	_, err = store.Write(ctx, 200, testCandidates())
	require.NoError(t, err)

	// one chat's clear leaves the other's session intact
	store.Clear(ctx, 100)

	require.Nil(t, store.ReadAndEvict(ctx, 100, 0))
	require.NotNil(t, store.ReadAndEvict(ctx, 200, 0))
}

func TestStore_SearchIDsDifferPerWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)
	second, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)

	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
}

func TestStore_PruneStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)

	// age the rows past the cutoff
	_, err = store.db.ExecContext(ctx,
		`UPDATE sessions SET created_at = datetime('now', '-48 hours') WHERE chat_id = ?`, 100)
	require.NoError(t, err)

	_, err = store.Write(ctx, 200, testCandidates())
	require.NoError(t, err)

	pruned, err := store.PruneStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 3, pruned)

	require.Nil(t, store.ReadAndEvict(ctx, 100, 0))
	require.NotNil(t, store.ReadAndEvict(ctx, 200, 0))
}

func TestStore_Count(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = store.Write(ctx, 100, testCandidates())
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
