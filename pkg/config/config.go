package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the engagement collector
type Config struct {
	// API credentials and transport
	API APIConfig `yaml:"api" json:"api"`

	// Fixed-window request budget
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// What to collect and when to fall back to the browser
	Collection CollectionConfig `yaml:"collection" json:"collection"`

	// Browser fallback extraction
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`

	// Export settings
	Export ExportConfig `yaml:"export" json:"export"`

	// Retry behaviour for transient API failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Batch runner settings
	Runner RunnerConfig `yaml:"runner" json:"runner"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds platform API credentials and transport settings
type APIConfig struct {
	BearerToken  string        `yaml:"bearer_token" json:"bearer_token"`
	APIKey       string        `yaml:"api_key" json:"api_key"`
	APISecret    string        `yaml:"api_secret" json:"api_secret"`
	AccessToken  string        `yaml:"access_token" json:"access_token"`
	AccessSecret string        `yaml:"access_secret" json:"access_secret"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig holds the fixed-window budget parameters
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window"`
	WindowDuration    time.Duration `yaml:"window_duration" json:"window_duration"`
	RequestSpacing    time.Duration `yaml:"request_spacing" json:"request_spacing"`
}

// CollectionConfig selects which engagement surfaces are fetched
type CollectionConfig struct {
	SkipLikes     bool `yaml:"skip_likes" json:"skip_likes"`
	SkipReposts   bool `yaml:"skip_reposts" json:"skip_reposts"`
	ForceFallback bool `yaml:"force_fallback" json:"force_fallback"`
	PageSize      int  `yaml:"page_size" json:"page_size"`
}

// FallbackConfig holds browser extraction settings
type FallbackConfig struct {
	Enabled            bool          `yaml:"enabled" json:"enabled"`
	CandidateCap       int           `yaml:"candidate_cap" json:"candidate_cap"`
	StabilityThreshold int           `yaml:"stability_threshold" json:"stability_threshold"`
	MaxRevealSteps     int           `yaml:"max_reveal_steps" json:"max_reveal_steps"`
	SettleDelay        time.Duration `yaml:"settle_delay" json:"settle_delay"`
	SessionTimeout     time.Duration `yaml:"session_timeout" json:"session_timeout"`
	Headless           bool          `yaml:"headless" json:"headless"`
	ChromePath         string        `yaml:"chrome_path" json:"chrome_path"`
	UserAgent          string        `yaml:"user_agent" json:"user_agent"`
	CookiesFile        string        `yaml:"cookies_file" json:"cookies_file"`
}

// ExportConfig holds workbook output settings
type ExportConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	WriteReport   bool   `yaml:"write_report" json:"write_report"`
}

// RetryConfig holds bounded-retry parameters for transient API failures
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	Jitter       bool          `yaml:"jitter" json:"jitter"`
}

// RunnerConfig holds batch-mode settings
type RunnerConfig struct {
	ConcurrentRuns int `yaml:"concurrent_runs" json:"concurrent_runs"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.twitter.com/2",
			Timeout:   30 * time.Second,
			UserAgent: "xengage/1.0",
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 25,
			WindowDuration:    15 * time.Minute,
			RequestSpacing:    40 * time.Second,
		},
		Collection: CollectionConfig{
			SkipLikes:     false,
			SkipReposts:   false,
			ForceFallback: false,
			PageSize:      100,
		},
		Fallback: FallbackConfig{
			Enabled:            true,
			CandidateCap:       500,
			StabilityThreshold: 3,
			MaxRevealSteps:     30,
			SettleDelay:        1500 * time.Millisecond,
			SessionTimeout:     5 * time.Minute,
			Headless:           true,
		},
		Export: ExportConfig{
			BaseDirectory: "./exports",
			WriteReport:   true,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		Runner: RunnerConfig{
			ConcurrentRuns: 2,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Credentials: the conventional TWITTER_* names win over XENGAGE_* ones
	// so existing tooling keeps working.
	if token := os.Getenv("TWITTER_BEARER_TOKEN"); token != "" {
		c.API.BearerToken = token
	} else if token := os.Getenv("XENGAGE_BEARER_TOKEN"); token != "" {
		c.API.BearerToken = token
	}
	if key := os.Getenv("TWITTER_API_KEY"); key != "" {
		c.API.APIKey = key
	}
	if secret := os.Getenv("TWITTER_API_SECRET"); secret != "" {
		c.API.APISecret = secret
	}
	if token := os.Getenv("TWITTER_ACCESS_TOKEN"); token != "" {
		c.API.AccessToken = token
	}
	if secret := os.Getenv("TWITTER_ACCESS_SECRET"); secret != "" {
		c.API.AccessSecret = secret
	}

	if base := os.Getenv("XENGAGE_API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}

	// Rate limiting
	if quota := os.Getenv("XENGAGE_REQUESTS_PER_WINDOW"); quota != "" {
		var val int
		fmt.Sscanf(quota, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerWindow = val
		}
	}

	// Output directory
	if outputDir := os.Getenv("XENGAGE_OUTPUT_DIR"); outputDir != "" {
		c.Export.BaseDirectory = outputDir
	}

	// Fallback toggles
	if headless := os.Getenv("XENGAGE_HEADLESS"); headless != "" {
		c.Fallback.Headless = strings.ToLower(headless) != "false"
	}
	if chromePath := os.Getenv("XENGAGE_CHROME_PATH"); chromePath != "" {
		c.Fallback.ChromePath = chromePath
	}

	// Notifications
	if notifEnabled := os.Getenv("XENGAGE_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	// Logging level
	if logLevel := os.Getenv("XENGAGE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
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
	// Check in order of precedence
	locations := []string{
		".xengage.yaml",
		".xengage.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "xengage", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "xengage", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".xengage.yaml"),
		filepath.Join(os.Getenv("HOME"), ".xengage.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not
// required here: the auth chain may still supply them after config loading,
// and the collect command enforces their presence at the last moment.
func (c *Config) Validate() error {
	var errs []error

	// Validate rate limiting
	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("requests per window must be positive"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		errs = append(errs, errors.New("window duration must be positive"))
	}
	if c.RateLimit.RequestSpacing < 0 {
		errs = append(errs, errors.New("request spacing cannot be negative"))
	}
	if spaced := time.Duration(c.RateLimit.RequestsPerWindow-1) * c.RateLimit.RequestSpacing; spaced >= c.RateLimit.WindowDuration {
		errs = append(errs, fmt.Errorf("%d requests spaced %v apart do not fit in a %v window",
			c.RateLimit.RequestsPerWindow, c.RateLimit.RequestSpacing, c.RateLimit.WindowDuration))
	}

	// Validate collection settings
	if c.Collection.PageSize < 1 || c.Collection.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}

	// Validate fallback settings
	if c.Fallback.StabilityThreshold < 1 {
		errs = append(errs, errors.New("stability threshold must be at least 1"))
	}
	if c.Fallback.MaxRevealSteps < 1 {
		errs = append(errs, errors.New("max reveal steps must be at least 1"))
	}
	if c.Fallback.SettleDelay < 0 {
		errs = append(errs, errors.New("settle delay cannot be negative"))
	}
	if c.Fallback.CandidateCap < 0 {
		errs = append(errs, errors.New("candidate cap cannot be negative"))
	}

	// Validate export settings
	if c.Export.BaseDirectory == "" {
		errs = append(errs, errors.New("export directory is required"))
	}

	// Validate retry settings
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	// Validate runner settings
	if c.Runner.ConcurrentRuns < 1 {
		errs = append(errs, errors.New("concurrent runs must be at least 1"))
	}
	if c.Runner.ConcurrentRuns > 8 {
		errs = append(errs, errors.New("concurrent runs should not exceed 8"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	// Validate notification type
	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
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

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["bearer-token"].(string); ok && token != "" {
		c.API.BearerToken = token
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Export.BaseDirectory = outputDir
	}
	if skip, ok := flags["skip-likes"].(bool); ok {
		c.Collection.SkipLikes = skip
	}
	if skip, ok := flags["skip-reposts"].(bool); ok {
		c.Collection.SkipReposts = skip
	}
	if force, ok := flags["force-fallback"].(bool); ok {
		c.Collection.ForceFallback = force
	}
	if disabled, ok := flags["no-fallback"].(bool); ok && disabled {
		c.Fallback.Enabled = false
	}
	if quota, ok := flags["requests-per-window"].(int); ok && quota > 0 {
		c.RateLimit.RequestsPerWindow = quota
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Collection.PageSize = pageSize
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Runner.ConcurrentRuns = concurrent
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Fallback.Headless = headless
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if enabled, ok := flags["notifications-enabled"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xengage.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
