package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xengage/pkg/config"
	"xengage/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage engagement collector configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.xengage.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values

Sensitive values like credentials will be masked for security.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = ".xengage.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# Engagement Collector Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with XENGAGE_
# For example: XENGAGE_OUTPUT_DIR, XENGAGE_LOG_LEVEL
# Credentials use the conventional TWITTER_* names, e.g. TWITTER_BEARER_TOKEN

# API credentials and transport
api:
  # API bearer token (required unless stored via 'xengage auth login')
  # Get this from the developer portal under Keys and Tokens
  bearer_token: "YOUR_BEARER_TOKEN"

  # API base URL (tests and proxies may override this)
  base_url: "https://api.twitter.com/2"

  # HTTP timeout per request
  timeout: 30s

  # User agent string (optional)
  user_agent: "xengage/1.0"

# Rate limiting configuration
rate_limit:
  # Paged requests allowed per window
  # The platform grants 25 per 15 minutes on the basic tier
  requests_per_window: 25

  # Window length
  window_duration: 15m

  # Minimum spacing between consecutive paged requests
  request_spacing: 40s

# Collection configuration
collection:
  # Skip the liking-users fetch
  skip_likes: false

  # Skip the reposters fetch
  skip_reposts: false

  # Always run the browser fallback regardless of post age
  force_fallback: false

  # Results requested per page
  # Range: 1-100
  page_size: 100

# Browser fallback configuration
fallback:
  # Allow the browser fallback at all
  enabled: true

  # Most reply candidates the browser may accumulate (0 = unlimited)
  candidate_cap: 500

  # Consecutive stable reveal rounds before the page counts as settled
  stability_threshold: 3

  # Most reveal rounds before giving up on hidden replies
  max_reveal_steps: 30

  # Wait after each reveal action before re-reading the page
  settle_delay: 1500ms

  # Upper bound for one whole browser session
  session_timeout: 5m

  # Run Chrome without a window
  headless: true

  # Path to a specific Chrome binary (empty = find on PATH)
  chrome_path: ""

  # Browser user agent override (empty = realistic default)
  user_agent: ""

  # Session cookie file captured from a logged-in browser (optional)
  cookies_file: ""

# Export configuration
export:
  # Output directory for workbooks
  base_directory: "./exports"

  # Write a JSON run report next to each workbook
  write_report: true

# Retry configuration
retry:
  # Maximum number of attempts per request
  # Range: 1-10
  max_attempts: 3

  # Initial backoff duration
  initial_delay: 2s

  # Maximum backoff duration
  max_delay: 30s

  # Backoff multiplier
  multiplier: 2.0

  # Add random jitter to backoff delays
  jitter: true

# Batch runner configuration
runner:
  # Concurrent collections when several posts are given
  # Range: 1-8
  concurrent_runs: 2

# Notification configuration
notifications:
  # Enable notifications
  enabled: true

  # Notify when a collection completes
  on_complete: true

  # Notify on errors
  on_error: true

  # Notification type: terminal, desktop, none
  notification_type: "terminal"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file or run 'xengage auth login' to store credentials")
	fmt.Println("2. Run 'xengage config validate' to check the configuration")
	fmt.Println("3. Start collecting with 'xengage collect <post-id-or-url>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Create a sanitized version for display
	displayCfg := *cfg
	displayCfg.API.BearerToken = maskSecret(displayCfg.API.BearerToken)
	displayCfg.API.APIKey = maskSecret(displayCfg.API.APIKey)
	displayCfg.API.APISecret = maskSecret(displayCfg.API.APISecret)
	displayCfg.API.AccessToken = maskSecret(displayCfg.API.AccessToken)
	displayCfg.API.AccessSecret = maskSecret(displayCfg.API.AccessSecret)

	// Convert to YAML for display
	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (XENGAGE_*, TWITTER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Check if config file is specified
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			".xengage.yaml",
			".xengage.yml",
			"xengage.yaml",
			"xengage.yml",
			filepath.Join(os.Getenv("HOME"), ".xengage.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "xengage", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	// Try to load and validate configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	// Perform additional validation checks
	warnings := []string{}
	errors := []string{}

	// Check credentials
	if cfg.API.BearerToken == "" || cfg.API.BearerToken == "YOUR_BEARER_TOKEN" {
		warnings = append(warnings, "API bearer token not configured (stored accounts and TWITTER_BEARER_TOKEN still apply)")
	}

	// Check paths
	if cfg.Export.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Export.BaseDirectory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create export directory: %v", err))
		}
	}

	// Check logging file path
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	// Check fallback resources
	if cfg.Fallback.CookiesFile != "" {
		if _, err := os.Stat(cfg.Fallback.CookiesFile); err != nil {
			warnings = append(warnings, fmt.Sprintf("Cookies file not found: %s", cfg.Fallback.CookiesFile))
		}
	}
	if cfg.Fallback.ChromePath != "" {
		if _, err := os.Stat(cfg.Fallback.ChromePath); err != nil {
			errors = append(errors, fmt.Sprintf("Chrome binary not found: %s", cfg.Fallback.ChromePath))
		}
	}

	// Check value ranges beyond what loading already enforced
	if cfg.Retry.MaxAttempts > 10 {
		errors = append(errors, "max_attempts must be between 1 and 10")
	}
	if spacing := cfg.RateLimit.RequestSpacing; spacing > cfg.RateLimit.WindowDuration {
		errors = append(errors, "request_spacing cannot exceed window_duration")
	}

	// Display results
	if len(errors) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Export directory: %s\n", cfg.Export.BaseDirectory)
	fmt.Printf("  Rate limit: %d requests/%s, %s apart\n",
		cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration, cfg.RateLimit.RequestSpacing)
	fmt.Printf("  Concurrent runs: %d\n", cfg.Runner.ConcurrentRuns)
	fmt.Printf("  Browser fallback: %s\n", onOff(cfg.Fallback.Enabled))
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

// maskSecret masks all but the first 4 and last 4 characters of a secret
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
