package jobs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set SCRIBE_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a live server.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("SCRIBE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCRIBE_TEST_REDIS_ADDR not set")
	}
	store, err := NewRedisStore(RedisOptions{Addr: addr, DB: 15, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore_CRUD(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, id) })

	require.NoError(t, store.Create(ctx, &Job{ID: id, Status: StatusPending, Filename: "a.mp3", CreatedAt: time.Now()}))
	assert.ErrorIs(t, store.Create(ctx, &Job{ID: id}), ErrExists)

	updated, err := store.Update(ctx, id, func(j *Job) error {
		j.Status = StatusTranscribing
		j.Progress = 40
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Progress)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusTranscribing, got.Status)
	assert.Equal(t, "a.mp3", got.Filename)

	list, err := store.List(ctx)
	require.NoError(t, err)
	found := false
	for _, j := range list {
		found = found || j.ID == id
	}
	assert.True(t, found)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ListDropsExpiredIDs(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	// index an id that has no record
	require.NoError(t, store.rc.SAdd(jobIndexKey, id).Err())

	list, err := store.List(ctx)
	require.NoError(t, err)
	for _, j := range list {
		assert.NotEqual(t, id, j.ID)
	}
	isMember, err := store.rc.SIsMember(jobIndexKey, id).Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestRedisStore_UnreachableServer(t *testing.T) {
	_, err := NewRedisStore(RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, "scribe:job:abc", jobKey("abc"))
	var _ Store = (*RedisStore)(nil)
	var _ Store = (*MemoryStore)(nil)
}
