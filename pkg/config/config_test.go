package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// Test default values
	if config.RateLimit.RequestsPerWindow != 25 {
		t.Errorf("Expected default requests per window to be 25, got %d", config.RateLimit.RequestsPerWindow)
	}

	if config.RateLimit.WindowDuration != 15*time.Minute {
		t.Errorf("Expected default window duration to be 15m, got %v", config.RateLimit.WindowDuration)
	}

	if config.RateLimit.RequestSpacing != 40*time.Second {
		t.Errorf("Expected default request spacing to be 40s, got %v", config.RateLimit.RequestSpacing)
	}

	if config.Export.BaseDirectory != "./exports" {
		t.Errorf("Expected default export directory to be ./exports, got %s", config.Export.BaseDirectory)
	}

	if config.Collection.PageSize != 100 {
		t.Errorf("Expected default page size to be 100, got %d", config.Collection.PageSize)
	}

	if !config.Fallback.Enabled {
		t.Error("Expected fallback to be enabled by default")
	}

	if config.Fallback.StabilityThreshold != 3 {
		t.Errorf("Expected default stability threshold to be 3, got %d", config.Fallback.StabilityThreshold)
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set test environment variables
	os.Setenv("TWITTER_BEARER_TOKEN", "test-bearer-token")
	os.Setenv("XENGAGE_REQUESTS_PER_WINDOW", "10")
	os.Setenv("XENGAGE_OUTPUT_DIR", "/tmp/test-exports")
	os.Setenv("XENGAGE_NOTIFICATIONS_ENABLED", "false")
	os.Setenv("XENGAGE_LOG_LEVEL", "debug")
	os.Setenv("XENGAGE_HEADLESS", "false")

	defer func() {
		// Clean up environment variables
		os.Unsetenv("TWITTER_BEARER_TOKEN")
		os.Unsetenv("XENGAGE_REQUESTS_PER_WINDOW")
		os.Unsetenv("XENGAGE_OUTPUT_DIR")
		os.Unsetenv("XENGAGE_NOTIFICATIONS_ENABLED")
		os.Unsetenv("XENGAGE_LOG_LEVEL")
		os.Unsetenv("XENGAGE_HEADLESS")
	}()

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	// Test loaded values
	if config.API.BearerToken != "test-bearer-token" {
		t.Errorf("Expected bearer token to be test-bearer-token, got %s", config.API.BearerToken)
	}

	if config.RateLimit.RequestsPerWindow != 10 {
		t.Errorf("Expected requests per window to be 10, got %d", config.RateLimit.RequestsPerWindow)
	}

	if config.Export.BaseDirectory != "/tmp/test-exports" {
		t.Errorf("Expected export directory to be /tmp/test-exports, got %s", config.Export.BaseDirectory)
	}

	if config.Notifications.Enabled != false {
		t.Errorf("Expected notifications to be disabled, got %v", config.Notifications.Enabled)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}

	if config.Fallback.Headless {
		t.Error("Expected headless mode to be disabled via env")
	}
}

func TestBearerTokenPrecedence(t *testing.T) {
	os.Setenv("TWITTER_BEARER_TOKEN", "conventional")
	os.Setenv("XENGAGE_BEARER_TOKEN", "app-specific")
	defer func() {
		os.Unsetenv("TWITTER_BEARER_TOKEN")
		os.Unsetenv("XENGAGE_BEARER_TOKEN")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.API.BearerToken != "conventional" {
		t.Errorf("Expected the conventional TWITTER_BEARER_TOKEN to win, got %s", config.API.BearerToken)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
rate_limit:
  requests_per_window: 5
  window_duration: 1m
  request_spacing: 2s
collection:
  skip_likes: true
  page_size: 50
fallback:
  stability_threshold: 4
export:
  base_directory: /tmp/from-file
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.RateLimit.RequestsPerWindow != 5 {
		t.Errorf("Expected requests per window 5, got %d", config.RateLimit.RequestsPerWindow)
	}
	if config.RateLimit.WindowDuration != time.Minute {
		t.Errorf("Expected window duration 1m, got %v", config.RateLimit.WindowDuration)
	}
	if !config.Collection.SkipLikes {
		t.Error("Expected skip_likes to be true")
	}
	if config.Collection.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", config.Collection.PageSize)
	}
	if config.Fallback.StabilityThreshold != 4 {
		t.Errorf("Expected stability threshold 4, got %d", config.Fallback.StabilityThreshold)
	}
	if config.Export.BaseDirectory != "/tmp/from-file" {
		t.Errorf("Expected export directory from file, got %s", config.Export.BaseDirectory)
	}

	// Untouched sections keep their defaults
	if config.Fallback.MaxRevealSteps != 30 {
		t.Errorf("Expected default max reveal steps, got %d", config.Fallback.MaxRevealSteps)
	}
}

func TestLoadFromMissingFileIsNotAnError(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(""); err != nil {
		t.Errorf("Expected no error when no config file exists, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	config.MergeCommandLineFlags(map[string]interface{}{
		"bearer-token":        "flag-token",
		"output":              "/tmp/flag-output",
		"skip-likes":          true,
		"skip-reposts":        true,
		"force-fallback":      true,
		"requests-per-window": 12,
		"page-size":           25,
		"concurrent":          4,
		"log-level":           "warn",
	})

	if config.API.BearerToken != "flag-token" {
		t.Errorf("Expected bearer token from flag, got %s", config.API.BearerToken)
	}
	if config.Export.BaseDirectory != "/tmp/flag-output" {
		t.Errorf("Expected output dir from flag, got %s", config.Export.BaseDirectory)
	}
	if !config.Collection.SkipLikes || !config.Collection.SkipReposts {
		t.Error("Expected skip flags to be merged")
	}
	if !config.Collection.ForceFallback {
		t.Error("Expected force-fallback to be merged")
	}
	if config.RateLimit.RequestsPerWindow != 12 {
		t.Errorf("Expected requests per window 12, got %d", config.RateLimit.RequestsPerWindow)
	}
	if config.Collection.PageSize != 25 {
		t.Errorf("Expected page size 25, got %d", config.Collection.PageSize)
	}
	if config.Runner.ConcurrentRuns != 4 {
		t.Errorf("Expected concurrent runs 4, got %d", config.Runner.ConcurrentRuns)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "default config is valid",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name: "zero quota",
			mutate: func(c *Config) {
				c.RateLimit.RequestsPerWindow = 0
			},
			wantError: true,
		},
		{
			name: "spacing does not fit the window",
			mutate: func(c *Config) {
				c.RateLimit.RequestsPerWindow = 25
				c.RateLimit.RequestSpacing = time.Minute
				c.RateLimit.WindowDuration = 15 * time.Minute
			},
			wantError: true,
		},
		{
			name: "page size out of range",
			mutate: func(c *Config) {
				c.Collection.PageSize = 500
			},
			wantError: true,
		},
		{
			name: "stability threshold below one",
			mutate: func(c *Config) {
				c.Fallback.StabilityThreshold = 0
			},
			wantError: true,
		},
		{
			name: "missing export directory",
			mutate: func(c *Config) {
				c.Export.BaseDirectory = ""
			},
			wantError: true,
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "loud"
			},
			wantError: true,
		},
		{
			name: "too many concurrent runs",
			mutate: func(c *Config) {
				c.Runner.ConcurrentRuns = 64
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	config := DefaultConfig()
	config.RateLimit.RequestsPerWindow = 7
	config.Collection.SkipReposts = true

	if err := config.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	reloaded := DefaultConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}

	if reloaded.RateLimit.RequestsPerWindow != 7 {
		t.Errorf("Expected reloaded quota 7, got %d", reloaded.RateLimit.RequestsPerWindow)
	}
	if !reloaded.Collection.SkipReposts {
		t.Error("Expected reloaded skip_reposts to be true")
	}
}
