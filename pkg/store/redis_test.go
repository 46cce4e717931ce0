package store

import (
	"context"
	"testing"

	"bridgypoll/pkg/config"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAreaContract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	runAreaContract(t, NewRedisArea(client, "test", AreaLocal))
}

func TestRedisAreaKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewRedisArea(client, "", AreaSync)
	require.NoError(t, a.Set(context.Background(), TokenKey, "abc"))

	raw, err := mr.Get("bridgypoll:sync:token")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, raw)
}

func TestRedisAreasAreIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	syncArea := NewRedisArea(client, "p", AreaSync)
	localArea := NewRedisArea(client, "p", AreaLocal)

	require.NoError(t, syncArea.Set(ctx, "shared", "sync"))

	var v string
	ok, err := localArea.Get(ctx, "shared", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	stores, err := Open(context.Background(), config.StorageConfig{
		Backend: "redis",
		Redis:   config.RedisConfig{Addr: mr.Addr(), Prefix: "bp"},
	})
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Sync.Set(context.Background(), TokenKey, "t"))
	assert.True(t, mr.Exists("bp:sync:token"))
}

func TestRedisAreaPrefixWithGlobCharacters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	starred := NewRedisArea(client, "b*", AreaLocal)
	other := NewRedisArea(client, "bridgypoll", AreaLocal)
	bracketed := NewRedisArea(client, "[bp]?", AreaLocal)

	require.NoError(t, other.Set(ctx, SourceKeyKey("facebook"), "theirs"))
	require.NoError(t, starred.Set(ctx, LastStartKey("facebook"), "ours"))
	require.NoError(t, bracketed.Set(ctx, LastSuccessKey("facebook"), "mine"))

	keys, err := starred.Keys(ctx, "facebook-")
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook-lastStart"}, keys)

	keys, err = bracketed.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook-lastSuccess"}, keys)
}
