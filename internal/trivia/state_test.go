package trivia

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateStore(t *testing.T) *StateStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStateStore(client, time.Hour)
}

func TestStateStoreProgressRoundtrip(t *testing.T) {
	store := newTestStateStore(t)
	ctx := context.Background()
	matchID, userID := uuid.New(), uuid.New()

	_, err := store.LoadProgress(ctx, matchID, userID)
	assert.ErrorIs(t, err, ErrStateNotFound)

	want := Progress{Answered: 4, Correct: 3, Index: 4}
	require.NoError(t, store.SaveProgress(ctx, matchID, userID, want))

	got, err := store.LoadProgress(ctx, matchID, userID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStateStoreQuestionIDs(t *testing.T) {
	store := newTestStateStore(t)
	ctx := context.Background()
	matchID := uuid.New()

	_, err := store.LoadQuestionIDs(ctx, matchID)
	assert.ErrorIs(t, err, ErrStateNotFound)

	ids := []int64{4, 8, 15, 16, 23, 42}
	require.NoError(t, store.SaveQuestionIDs(ctx, matchID, ids))

	got, err := store.LoadQuestionIDs(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestStateStoreClear(t *testing.T) {
	store := newTestStateStore(t)
	ctx := context.Background()
	matchID, one, two := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, store.SaveQuestionIDs(ctx, matchID, []int64{1, 2}))
	require.NoError(t, store.SaveProgress(ctx, matchID, one, Progress{Answered: 1}))
	require.NoError(t, store.SaveProgress(ctx, matchID, two, Progress{Answered: 2}))

	require.NoError(t, store.Clear(ctx, matchID, one, two))

	_, err := store.LoadQuestionIDs(ctx, matchID)
	assert.ErrorIs(t, err, ErrStateNotFound)
	_, err = store.LoadProgress(ctx, matchID, one)
	assert.ErrorIs(t, err, ErrStateNotFound)
	_, err = store.LoadProgress(ctx, matchID, two)
	assert.ErrorIs(t, err, ErrStateNotFound)
}
