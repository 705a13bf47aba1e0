package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/testutils"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := testutils.TestRedis(t)
	store := NewRedisStore(client)

	t.Run("put get delete round trip", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "sess:abc", []byte(`{"id":"abc"}`), time.Minute))

		data, err := store.Get(ctx, "sess:abc")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"abc"}`), data)

		require.NoError(t, store.Delete(ctx, "sess:abc"))
		_, err = store.Get(ctx, "sess:abc")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("entries expire natively", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "sess:short", []byte("x"), 50*time.Millisecond))

		time.Sleep(100 * time.Millisecond)
		_, err := store.Get(ctx, "sess:short")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing key is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "sess:missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("sweep is a no-op", func(t *testing.T) {
		removed, err := store.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestManagerOnRedis(t *testing.T) {
	ctx := context.Background()
	client := testutils.TestRedis(t)
	manager := NewManager(NewRedisStore(client), time.Minute)

	sess, err := manager.Create(ctx, "u1", "alice", "moderator")
	require.NoError(t, err)

	loaded, err := manager.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID)

	role, err := manager.UserRole(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "moderator", role)

	require.NoError(t, manager.Delete(ctx, sess.ID))
	_, err = manager.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
