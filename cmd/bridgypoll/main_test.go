package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// isolate points every default location at a temp dir and returns a data dir
func isolate(t *testing.T) string {
	t.Helper()
	keyring.MockInit()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	t.Setenv("BRIDGYPOLL_TOKEN", "")
	t.Setenv("BRIDGYPOLL_PASSPHRASE", "test-passphrase")
	return filepath.Join(home, "data")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configFile, logLevel, bridgyURL, dataDir, storageBackend = "", "error", "", "", ""
	quiet, tokenFlag, showToken, clearAll, listenAddr = false, "", false, false, ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bridgypoll "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bridgypoll.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created")
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err)

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "[facebook]")
}

func TestAlarmsListEmpty(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "alarms", "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No alarms registered")
}

func TestScheduleThenClear(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "schedule", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "bridgy-facebook-poll")
	assert.NotContains(t, out, "bridgy-instagram-poll")
	assert.Contains(t, out, "30m0s")

	out, err = execute(t, "alarms", "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "bridgy-facebook-poll")

	_, err = execute(t, "alarms", "clear", "--data-dir", dir)
	assert.Error(t, err)

	out, err = execute(t, "alarms", "clear", "--all", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared bridgy-facebook-poll")
}

func TestAuthAndPoll(t *testing.T) {
	dir := isolate(t)

	var mu sync.Mutex
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		form = map[string]string{
			"path":  r.URL.Path,
			"token": r.PostForm.Get("token"),
			"key":   r.PostForm.Get("key"),
		}
		mu.Unlock()
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	out, err := execute(t, "auth", "login", "--token", "my-bridgy-token", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Bridgy token stored")
	assert.NotContains(t, out, "my-bridgy-token")

	out, err = execute(t, "auth", "token", "--show", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "my-bridgy-token")

	_, err = execute(t, "poll", "facebook", "--data-dir", dir, "--bridgy-url", srv.URL)
	require.Error(t, err, "poll without a source key")

	_, err = execute(t, "state", "set-key", "facebook", "src-key", "--data-dir", dir)
	require.NoError(t, err)

	out, err = execute(t, "poll", "facebook", "--data-dir", dir, "--bridgy-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Bridgy is polling facebook")

	mu.Lock()
	assert.Equal(t, map[string]string{
		"path":  "/facebook/browser/poll",
		"token": "my-bridgy-token",
		"key":   "src-key",
	}, form)
	mu.Unlock()

	out, err = execute(t, "state", "show", "facebook", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "src-key")
	assert.NotContains(t, out, "never")

	_, err = execute(t, "auth", "logout", "--data-dir", dir)
	require.NoError(t, err)
	_, err = execute(t, "auth", "token", "--data-dir", dir)
	assert.Error(t, err)
}

func TestUnknownSilo(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "state", "show", "myspace", "--data-dir", dir)
	assert.Error(t, err)
}
