package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FrequencyMinutes is the default number of minutes between two polls of a silo
	FrequencyMinutes = 30

	// InitialDelayMinutes is the default delay before an alarm fires for the first time
	InitialDelayMinutes = 5

	// MinFrequencyMinutes is the shortest accepted poll period, the same floor
	// browsers put on recurring alarms
	MinFrequencyMinutes = 1

	envPrefix = "BRIDGYPOLL_"
)

// KnownSilos lists the silo identifiers that can appear in the silos section, in dispatch order
var KnownSilos = []string{"facebook", "instagram"}

// Config holds all configuration options for the poller
type Config struct {
	// Bridgy endpoint settings
	Bridgy BridgyConfig `yaml:"bridgy" json:"bridgy"`

	// Alarm timing
	Poll PollConfig `yaml:"poll" json:"poll"`

	// Enabled set of silos, keyed by silo identifier
	Silos map[string]SiloConfig `yaml:"silos" json:"silos"`

	// Persisted state backend
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Status server
	Server ServerConfig `yaml:"server" json:"server"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BridgyConfig holds the Bridgy service settings
type BridgyConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// PollConfig holds the alarm schedule shared by every silo
type PollConfig struct {
	FrequencyMinutes    float64 `yaml:"frequency_minutes" json:"frequency_minutes"`
	InitialDelayMinutes float64 `yaml:"initial_delay_minutes" json:"initial_delay_minutes"`
}

// SiloConfig toggles a single silo
type SiloConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// StorageConfig selects where the sync and local areas live
type StorageConfig struct {
	Backend   string      `yaml:"backend" json:"backend"`
	Directory string      `yaml:"directory" json:"directory"`
	Redis     RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig holds the redis backend connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// ServerConfig holds the status server settings
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// RateLimitConfig holds rate limiting configuration for Bridgy requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration for Bridgy requests
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "console" for humans or "json" for log collectors
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bridgy: BridgyConfig{
			BaseURL:   "https://brid.gy",
			Timeout:   30 * time.Second,
			UserAgent: "bridgypoll/1.0",
		},
		Poll: PollConfig{
			FrequencyMinutes:    FrequencyMinutes,
			InitialDelayMinutes: InitialDelayMinutes,
		},
		Silos: map[string]SiloConfig{
			"facebook":  {Enabled: true},
			"instagram": {Enabled: false},
		},
		Storage: StorageConfig{
			Backend:   "file",
			Directory: defaultDataDir(),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "bridgypoll",
			},
		},
		Server: ServerConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8089",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    time.Minute,
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// EnabledSilos returns the identifiers of enabled silos in dispatch order
func (c *Config) EnabledSilos() []string {
	var out []string
	for _, name := range KnownSilos {
		if s, ok := c.Silos[name]; ok && s.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(envPrefix + "BRIDGY_URL"); v != "" {
		c.Bridgy.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "FREQUENCY_MINUTES"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sFREQUENCY_MINUTES: %w", envPrefix, err)
		}
		c.Poll.FrequencyMinutes = f
	}
	if v := os.Getenv(envPrefix + "INITIAL_DELAY_MINUTES"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sINITIAL_DELAY_MINUTES: %w", envPrefix, err)
		}
		c.Poll.InitialDelayMinutes = f
	}

	// BRIDGYPOLL_SILOS=facebook,instagram replaces the enabled set
	if v := os.Getenv(envPrefix + "SILOS"); v != "" {
		silos := make(map[string]SiloConfig, len(KnownSilos))
		for _, name := range KnownSilos {
			silos[name] = SiloConfig{Enabled: false}
		}
		for _, name := range strings.Split(v, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				silos[name] = SiloConfig{Enabled: true}
			}
		}
		c.Silos = silos
	}

	if v := os.Getenv(envPrefix + "STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(envPrefix + "DATA_DIR"); v != "" {
		c.Storage.Directory = v
	}
	if v := os.Getenv(envPrefix + "REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv(envPrefix + "REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv(envPrefix + "LISTEN"); v != "" {
		c.Server.Listen = v
		c.Server.Enabled = true
	}
	if v := os.Getenv(envPrefix + "REQUESTS_PER_MINUTE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".bridgypoll.yaml",
		".bridgypoll.yml",
		filepath.Join(home, ".config", "bridgypoll", "config.yaml"),
		filepath.Join(home, ".config", "bridgypoll", "config.yml"),
		filepath.Join(home, ".bridgypoll.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Bridgy.BaseURL == "" {
		errs = append(errs, errors.New("bridgy base URL is required"))
	}
	if c.Bridgy.Timeout <= 0 {
		errs = append(errs, errors.New("bridgy timeout must be positive"))
	}

	if c.Poll.FrequencyMinutes < MinFrequencyMinutes {
		errs = append(errs, fmt.Errorf("poll frequency must be at least %d minute", MinFrequencyMinutes))
	}
	if c.Poll.InitialDelayMinutes < 0 {
		errs = append(errs, errors.New("initial delay cannot be negative"))
	}

	known := make(map[string]bool, len(KnownSilos))
	for _, name := range KnownSilos {
		known[name] = true
	}
	var unknown []string
	for name := range c.Silos {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errs = append(errs, fmt.Errorf("unknown silos: %s", strings.Join(unknown, ", ")))
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		if c.Storage.Directory == "" {
			errs = append(errs, errors.New("storage directory is required for the file backend"))
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage backend %q", c.Storage.Backend))
	}

	if c.Server.Enabled && c.Server.Listen == "" {
		errs = append(errs, errors.New("server listen address is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["bridgy-url"].(string); ok && v != "" {
		c.Bridgy.BaseURL = v
	}
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Storage.Directory = v
	}
	if v, ok := flags["storage"].(string); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := flags["listen"].(string); ok && v != "" {
		c.Server.Listen = v
		c.Server.Enabled = true
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".bridgypoll.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// defaultDataDir returns $XDG_DATA_HOME/bridgypoll or ~/.local/share/bridgypoll
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bridgypoll")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bridgypoll"
	}
	return filepath.Join(home, ".local", "share", "bridgypoll")
}
