package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAreaContract exercises the behaviour every Area backend must share
func runAreaContract(t *testing.T, a Area) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		var s string
		ok, err := a.Get(ctx, "nope", &s)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, TokenKey, "abc123"))

		var token string
		ok, err := a.Get(ctx, TokenKey, &token)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc123", token)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, SourceKeyKey("facebook"), "k1"))
		require.NoError(t, a.Set(ctx, SourceKeyKey("facebook"), "k2"))

		var key string
		_, err := a.Get(ctx, SourceKeyKey("facebook"), &key)
		require.NoError(t, err)
		assert.Equal(t, "k2", key)
	})

	t.Run("struct values", func(t *testing.T) {
		changed, err := UpdatePost(ctx, a, "facebook", "123", PostStats{Comments: 2, Reactions: 5})
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = UpdatePost(ctx, a, "facebook", "123", PostStats{Comments: 2, Reactions: 5})
		require.NoError(t, err)
		assert.False(t, changed)

		stats, err := GetPost(ctx, a, "facebook", "123")
		require.NoError(t, err)
		assert.Equal(t, PostStats{Comments: 2, Reactions: 5}, stats)
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, PostKey("facebook", "456"), PostStats{}))
		require.NoError(t, a.Set(ctx, PostKey("instagram", "789"), PostStats{}))

		keys, err := a.Keys(ctx, PostPrefix("facebook"))
		require.NoError(t, err)
		assert.Equal(t, []string{"facebook-post-123", "facebook-post-456"}, keys)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, "temp", 1))
		require.NoError(t, a.Remove(ctx, "temp"))
		require.NoError(t, a.Remove(ctx, "temp"))

		var v int
		ok, err := a.Get(ctx, "temp", &v)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("silo state", func(t *testing.T) {
		start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, SetTime(ctx, a, LastStartKey("facebook"), start))
		require.NoError(t, SetTime(ctx, a, LastSuccessKey("facebook"), start.Add(time.Minute)))

		state, err := LoadSiloState(ctx, a, "facebook")
		require.NoError(t, err)
		assert.Equal(t, "k2", state.SourceKey)
		require.NotNil(t, state.LastStart)
		assert.True(t, start.Equal(*state.LastStart))
		require.NotNil(t, state.LastSuccess)
		assert.Len(t, state.Posts, 2)
		assert.Equal(t, PostStats{Comments: 2, Reactions: 5}, state.Posts["123"])

		empty, err := LoadSiloState(ctx, a, "instagram")
		require.NoError(t, err)
		assert.Empty(t, empty.SourceKey)
		assert.Nil(t, empty.LastStart)
	})
}
