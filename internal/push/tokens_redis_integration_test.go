//go:build integration

package push_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	platformredis "chainrelay/internal/platform/redis"
	"chainrelay/internal/push"
	"chainrelay/pkg/platform/sentinel"
	"chainrelay/pkg/testutil/containers"
)

func newRedisTokenStore(t *testing.T) *push.RedisTokenStore {
	t.Helper()
	rc := containers.NewRedisContainer(t)
	return push.NewRedisTokenStore(&platformredis.Client{Client: rc.Client})
}

func TestRedisTokenStore(t *testing.T) {
	ctx := context.Background()
	store := newRedisTokenStore(t)

	t.Run("save and find", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "notify-alice", "apns-token-1"))

		token, err := store.Find(ctx, "notify-alice")
		require.NoError(t, err)
		require.Equal(t, "apns-token-1", token)
	})

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "notify-alice", "apns-token-2"))

		token, err := store.Find(ctx, "notify-alice")
		require.NoError(t, err)
		require.Equal(t, "apns-token-2", token)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := store.Find(ctx, "notify-nobody")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "notify-bob", "fcm-token"))
		require.NoError(t, store.Delete(ctx, "notify-bob"))

		_, err := store.Find(ctx, "notify-bob")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		// Deleting an absent token is a no-op, not an error.
		require.NoError(t, store.Delete(ctx, "notify-bob"))
	})
}
