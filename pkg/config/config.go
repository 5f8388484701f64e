// Package config loads gateway configuration from the environment and an
// optional YAML file. Environment variables win over file values so that a
// deployment can pin the base URL without touching the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	EnvBaseURL    = "X402_API_BASE_URL"
	EnvDebug      = "X402_DEBUG"
	EnvConfigFile = "X402_CONFIG_FILE"
)

// DefaultBaseURL is the hardcoded fallback when no override is configured
const DefaultBaseURL = "https://api.x402.dev"

// Retry defaults for the HTTP dispatcher
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
)

// FileConfig is the on-disk YAML shape
type FileConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	BaseDelayMs int    `yaml:"base_delay_ms,omitempty"`
}

// Config holds the resolved gateway configuration
type Config struct {
	// BaseURL is the remote x402 API root; endpoint paths are joined onto it
	BaseURL string
	// LogLevel is the logging manager filter level (DEBUG/INFO/WARN/ERROR)
	LogLevel string
	// MaxAttempts bounds dispatcher retries per call
	MaxAttempts int
	// BaseDelay is the first backoff delay; doubles per transient attempt
	BaseDelay time.Duration
	// ConfigFile is the YAML file path, empty when none is configured
	ConfigFile string
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		LogLevel:    "INFO",
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Load resolves configuration: defaults, then the YAML file (if present),
// then environment overrides
func Load() (Config, error) {
	cfg := Default()

	path := os.Getenv(EnvConfigFile)
	if path != "" {
		cfg.ConfigFile = path
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Reload re-reads the YAML file and re-applies environment overrides. The
// receiver is not mutated on failure.
func (c Config) Reload() (Config, error) {
	cfg := Default()
	cfg.ConfigFile = c.ConfigFile

	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			return c, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyFile merges YAML file values into the config
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.LogLevel != "" {
		c.LogLevel = strings.ToUpper(fc.LogLevel)
	}
	if fc.MaxAttempts > 0 {
		c.MaxAttempts = fc.MaxAttempts
	}
	if fc.BaseDelayMs > 0 {
		c.BaseDelay = time.Duration(fc.BaseDelayMs) * time.Millisecond
	}

	return nil
}

// applyEnv merges environment overrides into the config
func (c *Config) applyEnv() {
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		c.BaseURL = strings.TrimRight(baseURL, "/")
	}

	if debug := os.Getenv(EnvDebug); debug != "" {
		if enabled, err := strconv.ParseBool(debug); err == nil && enabled {
			c.LogLevel = "DEBUG"
		}
	}
}

// EndpointURL joins the base URL with a tool endpoint path
func (c Config) EndpointURL(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}
