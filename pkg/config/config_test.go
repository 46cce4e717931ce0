package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Poll.FrequencyMinutes != 30 {
		t.Errorf("Expected default frequency to be 30, got %v", config.Poll.FrequencyMinutes)
	}

	if config.Poll.InitialDelayMinutes != 5 {
		t.Errorf("Expected default initial delay to be 5, got %v", config.Poll.InitialDelayMinutes)
	}

	if got := config.EnabledSilos(); len(got) != 1 || got[0] != "facebook" {
		t.Errorf("Expected only facebook to be enabled, got %v", got)
	}

	if config.Storage.Backend != "file" {
		t.Errorf("Expected default storage backend to be file, got %s", config.Storage.Backend)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BRIDGYPOLL_BRIDGY_URL", "http://localhost:8080")
	t.Setenv("BRIDGYPOLL_FREQUENCY_MINUTES", "15")
	t.Setenv("BRIDGYPOLL_SILOS", "instagram, facebook")
	t.Setenv("BRIDGYPOLL_STORAGE_BACKEND", "redis")
	t.Setenv("BRIDGYPOLL_REDIS_ADDR", "redis:6379")
	t.Setenv("BRIDGYPOLL_LOG_LEVEL", "debug")
	t.Setenv("BRIDGYPOLL_LOG_FORMAT", "json")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "http://localhost:8080", config.Bridgy.BaseURL)
	assert.Equal(t, 15.0, config.Poll.FrequencyMinutes)
	assert.Equal(t, []string{"facebook", "instagram"}, config.EnabledSilos())
	assert.Equal(t, "redis", config.Storage.Backend)
	assert.Equal(t, "redis:6379", config.Storage.Redis.Addr)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoadFromEnvInvalidFrequency(t *testing.T) {
	t.Setenv("BRIDGYPOLL_FREQUENCY_MINUTES", "often")

	config := DefaultConfig()
	assert.Error(t, config.LoadFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "defaults",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "zero frequency",
			mutate:    func(c *Config) { c.Poll.FrequencyMinutes = 0 },
			wantError: true,
		},
		{
			name:      "frequency below one minute",
			mutate:    func(c *Config) { c.Poll.FrequencyMinutes = 1e-12 },
			wantError: true,
		},
		{
			name:      "one minute frequency",
			mutate:    func(c *Config) { c.Poll.FrequencyMinutes = 1 },
			wantError: false,
		},
		{
			name:      "negative delay",
			mutate:    func(c *Config) { c.Poll.InitialDelayMinutes = -1 },
			wantError: true,
		},
		{
			name: "unknown silo",
			mutate: func(c *Config) {
				c.Silos["myspace"] = SiloConfig{Enabled: true}
			},
			wantError: true,
		},
		{
			name:      "bad backend",
			mutate:    func(c *Config) { c.Storage.Backend = "sqlite" },
			wantError: true,
		},
		{
			name: "redis without address",
			mutate: func(c *Config) {
				c.Storage.Backend = "redis"
				c.Storage.Redis.Addr = ""
			},
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "loud" },
			wantError: true,
		},
		{
			name:      "invalid log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantError: true,
		},
		{
			name:      "no silos enabled is allowed",
			mutate:    func(c *Config) { c.Silos = map[string]SiloConfig{} },
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Storage.Directory = t.TempDir()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bridgy:
  base_url: https://bridgy.example
  timeout: 10s
poll:
  frequency_minutes: 60
silos:
  facebook:
    enabled: false
  instagram:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "https://bridgy.example", config.Bridgy.BaseURL)
	assert.Equal(t, 10*time.Second, config.Bridgy.Timeout)
	assert.Equal(t, 60.0, config.Poll.FrequencyMinutes)
	assert.Equal(t, 5.0, config.Poll.InitialDelayMinutes)
	assert.Equal(t, []string{"instagram"}, config.EnabledSilos())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\nstorage:\n  directory: "+dir+"\n"), 0644))

	t.Setenv("BRIDGYPOLL_LOG_LEVEL", "error")

	config, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", config.Logging.Level)

	config, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", config.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Silos["instagram"] = SiloConfig{Enabled: true}
	require.NoError(t, config.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, []string{"facebook", "instagram"}, loaded.EnabledSilos())
}
