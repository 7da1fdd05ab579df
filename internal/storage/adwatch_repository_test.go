package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStoreFromClient(client)
}

func TestAdWatchRepositoryGetMissing(t *testing.T) {
	_, store := newTestRedis(t)
	repo := NewAdWatchRepository(store)

	state, err := repo.Get(context.Background(), 42, "adexora")
	require.NoError(t, err)

	assert.Equal(t, "adexora", state.Provider)
	assert.Equal(t, 0, state.WatchedToday)
	assert.Nil(t, state.LastWatched)
	assert.Nil(t, state.LastReset)
}

func TestAdWatchRepositoryRecordWatch(t *testing.T) {
	_, store := newTestRedis(t)
	repo := NewAdWatchRepository(store)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordWatch(ctx, 42, "gigapub", at))
	require.NoError(t, repo.RecordWatch(ctx, 42, "gigapub", at.Add(time.Minute)))

	state, err := repo.Get(ctx, 42, "gigapub")
	require.NoError(t, err)

	assert.Equal(t, 2, state.WatchedToday)
	require.NotNil(t, state.LastWatched)
	assert.Equal(t, at.Add(time.Minute), state.LastWatched.UTC())
}

func TestAdWatchRepositoryResetUser(t *testing.T) {
	_, store := newTestRedis(t)
	repo := NewAdWatchRepository(store)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordWatch(ctx, 7, "adexora", at))
	require.NoError(t, repo.RecordWatch(ctx, 7, "libtl", at))

	require.NoError(t, repo.ResetUser(ctx, 7, []string{"adexora", "libtl"}, at))

	for _, provider := range []string{"adexora", "libtl"} {
		state, err := repo.Get(ctx, 7, provider)
		require.NoError(t, err)
		assert.Equal(t, 0, state.WatchedToday, provider)
		require.NotNil(t, state.LastReset, provider)
	}
}

func TestAdWatchRepositoryResetAll(t *testing.T) {
	_, store := newTestRedis(t)
	repo := NewAdWatchRepository(store)
	ctx := context.Background()

	at := time.Now().UTC()
	for userID := int64(1); userID <= 3; userID++ {
		require.NoError(t, repo.RecordWatch(ctx, userID, "onclicka", at))
	}

	touched, err := repo.ResetAll(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 3, touched)

	for userID := int64(1); userID <= 3; userID++ {
		state, err := repo.Get(ctx, userID, "onclicka")
		require.NoError(t, err)
		assert.Equal(t, 0, state.WatchedToday)
	}
}

func TestAdWatchRepositoryLastResetDate(t *testing.T) {
	_, store := newTestRedis(t)
	repo := NewAdWatchRepository(store)
	ctx := context.Background()

	date, err := repo.LastResetDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", date)

	require.NoError(t, repo.SetLastResetDate(ctx, "2024-03-01"))

	date, err = repo.LastResetDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", date)
}
