package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"bridgypoll/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAreaContract(t *testing.T) {
	a, err := NewFileArea(t.TempDir(), AreaLocal)
	require.NoError(t, err)
	runAreaContract(t, a)
}

func TestFileAreaPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := NewFileArea(dir, AreaSync)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, TokenKey, "persisted"))

	// No temp file is left behind after an atomic write
	_, err = os.Stat(a.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reopened, err := NewFileArea(dir, AreaSync)
	require.NoError(t, err)

	var token string
	ok, err := reopened.Get(ctx, TokenKey, &token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestFileAreaSharedBetweenProcesses(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	daemon, err := NewFileArea(dir, AreaLocal)
	require.NoError(t, err)
	cli, err := NewFileArea(dir, AreaLocal)
	require.NoError(t, err)

	require.NoError(t, daemon.Set(ctx, "alarm-bridgy-facebook-poll", "armed"))
	require.NoError(t, cli.Set(ctx, SourceKeyKey("facebook"), "srckey"))

	var key string
	ok, err := daemon.Get(ctx, SourceKeyKey("facebook"), &key)
	require.NoError(t, err)
	assert.True(t, ok, "write from another area is visible")
	assert.Equal(t, "srckey", key)

	// A later write by the daemon keeps what the CLI stored
	require.NoError(t, daemon.Set(ctx, LastStartKey("facebook"), "now"))

	reopened, err := NewFileArea(dir, AreaLocal)
	require.NoError(t, err)
	keys, err := reopened.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alarm-bridgy-facebook-poll", "facebook-bridgySourceKey", "facebook-lastStart"}, keys)

	// Removals are not resurrected either
	require.NoError(t, cli.Remove(ctx, "alarm-bridgy-facebook-poll"))
	require.NoError(t, daemon.Set(ctx, LastSuccessKey("facebook"), "later"))

	var alarm string
	ok, err = reopened.Get(ctx, "alarm-bridgy-facebook-poll", &alarm)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileAreaConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	areas := make([]*FileArea, 2)
	for i := range areas {
		a, err := NewFileArea(dir, AreaLocal)
		require.NoError(t, err)
		areas[i] = a
	}

	var wg sync.WaitGroup
	for i, a := range areas {
		wg.Add(1)
		go func(i int, a *FileArea) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, a.Set(ctx, PostKey("facebook", strconv.Itoa(i*100+j)), PostStats{Comments: j}))
			}
		}(i, a)
	}
	wg.Wait()

	keys, err := areas[0].Keys(ctx, PostPrefix("facebook"))
	require.NoError(t, err)
	assert.Len(t, keys, 40)
}

func TestFileAreaCancelledContext(t *testing.T) {
	a, err := NewFileArea(t.TempDir(), AreaLocal)
	require.NoError(t, err)

	other, err := NewFileArea(filepath.Dir(a.Path()), AreaLocal)
	require.NoError(t, err)
	require.NoError(t, other.lock.Lock())
	defer other.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, a.Set(ctx, TokenKey, "blocked"))
}

func TestFileAreaCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.json"), []byte("{not json"), 0600))

	_, err := NewFileArea(dir, AreaLocal)
	assert.Error(t, err)
}

func TestOpenFileBackend(t *testing.T) {
	dir := t.TempDir()
	stores, err := Open(context.Background(), config.StorageConfig{Backend: "file", Directory: dir})
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Sync.Set(context.Background(), TokenKey, "t"))
	require.NoError(t, stores.Local.Set(context.Background(), SourceKeyKey("facebook"), "k"))

	assert.FileExists(t, filepath.Join(dir, "sync.json"))
	assert.FileExists(t, filepath.Join(dir, "local.json"))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "facebook-bridgySourceKey", SourceKeyKey("facebook"))
	assert.Equal(t, "facebook-lastStart", LastStartKey("facebook"))
	assert.Equal(t, "facebook-lastSuccess", LastSuccessKey("facebook"))
	assert.Equal(t, "instagram-post-42", PostKey("instagram", "42"))
}

func TestPostStatsChanged(t *testing.T) {
	base := PostStats{Comments: 1, Reactions: 1}
	assert.False(t, base.Changed(base))
	assert.True(t, base.Changed(PostStats{Comments: 2, Reactions: 1}))
	assert.True(t, base.Changed(PostStats{Comments: 1, Reactions: 3}))
	assert.False(t, base.Changed(PostStats{Comments: 0, Reactions: 0}))
}
