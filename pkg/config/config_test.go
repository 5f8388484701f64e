package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvDebug, "")
	t.Setenv(EnvConfigFile, "")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL %s, got %s", DefaultBaseURL, cfg.BaseURL)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("Expected INFO log level, got %s", cfg.LogLevel)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected %d max attempts, got %d", DefaultMaxAttempts, cfg.MaxAttempts)
	}
	if cfg.BaseDelay != DefaultBaseDelay {
		t.Errorf("Expected %v base delay, got %v", DefaultBaseDelay, cfg.BaseDelay)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBaseURL, "http://localhost:3000/")
	t.Setenv(EnvDebug, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.BaseURL != "http://localhost:3000" {
		t.Errorf("Expected trimmed env base URL, got %s", cfg.BaseURL)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("Expected DEBUG from debug flag, got %s", cfg.LogLevel)
	}
}

func TestLoadInvalidDebugIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDebug, "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("Invalid debug value must not change level, got %s", cfg.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("base_url: http://file.example\nlog_level: warn\nmax_attempts: 5\nbase_delay_ms: 250\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.BaseURL != "http://file.example" {
		t.Errorf("Expected file base URL, got %s", cfg.BaseURL)
	}
	if cfg.LogLevel != "WARN" {
		t.Errorf("Expected file log level upper-cased, got %s", cfg.LogLevel)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("Expected 5 max attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms base delay, got %v", cfg.BaseDelay)
	}
	if cfg.ConfigFile != path {
		t.Errorf("Expected config file path recorded, got %s", cfg.ConfigFile)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://file.example\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvBaseURL, "http://env.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.BaseURL != "http://env.example" {
		t.Errorf("Expected env override, got %s", cfg.BaseURL)
	}
}

func TestLoadBrokenFileFails(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: [broken"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if err := os.WriteFile(path, []byte("log_level: debug\nmax_attempts: 7\n"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	reloaded, err := cfg.Reload()
	if err != nil {
		t.Fatalf("Reload() returned error: %v", err)
	}
	if reloaded.LogLevel != "DEBUG" {
		t.Errorf("Expected reloaded log level DEBUG, got %s", reloaded.LogLevel)
	}
	if reloaded.MaxAttempts != 7 {
		t.Errorf("Expected reloaded max attempts 7, got %d", reloaded.MaxAttempts)
	}
}

func TestReloadKeepsOldConfigOnFailure(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("max_attempts: 5\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if err := os.WriteFile(path, []byte("max_attempts: [broken"), 0o644); err != nil {
		t.Fatalf("Failed to corrupt config file: %v", err)
	}

	reloaded, err := cfg.Reload()
	if err == nil {
		t.Fatal("Expected error reloading corrupted file")
	}
	if reloaded.MaxAttempts != 5 {
		t.Errorf("Failed reload must return the previous config, got %d attempts", reloaded.MaxAttempts)
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		endpoint string
		expected string
	}{
		{"plain join", "http://api.example", "/api/tools/scan-invoice", "http://api.example/api/tools/scan-invoice"},
		{"trailing slash trimmed", "http://api.example/", "/api/tools/scan-invoice", "http://api.example/api/tools/scan-invoice"},
		{"missing leading slash added", "http://api.example", "api/tools/scan-invoice", "http://api.example/api/tools/scan-invoice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{BaseURL: tt.baseURL}
			if got := cfg.EndpointURL(tt.endpoint); got != tt.expected {
				t.Errorf("EndpointURL() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
