package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sigmabot/pkg/config"
	"sigmabot/pkg/logger"
	"sigmabot/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage sigmabot configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (TWITTER_*, TENOR_*, SIGMABOT_*)
  - .env file
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as '.sigmabot.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. Passwords and API
keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration: value ranges, quota budgets,
log file location and required credentials.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# sigmabot configuration file
#
# Credentials are best kept out of this file: use environment variables
# (TWITTER_USERNAME, TWITTER_EMAIL, TWITTER_PASSWORD, TENOR_API_KEY), a .env
# file, or 'sigmabot auth login'.

platform:
  base_url: "https://api.x.com/1.1"
  language: "en-US"
  request_timeout: 30s

tenor:
  base_url: "https://tenor.googleapis.com"
  client_key: "my_test_app"
  # Number of results to pick a random GIF from
  result_limit: 50
  # Client-side pacing of Tenor requests
  requests_per_second: 1
  request_timeout: 30s

engagement:
  search_query: "$sigma"
  search_mode: "Latest"
  media_term: "sigma"
  reply_text: "$SIGMA"
  poll_interval: 1m
  # Pause after a failed session before logging in again
  cooldown: 5m
  # Remember this many processed posts and skip repeats (0 disables)
  seen_window: 0

media:
  # Upload budget in bytes, just under the 5MB ceiling
  max_bytes: 5000000
  # Each shrink step scales both dimensions by this factor
  scale_factor: 0.9
  max_iterations: 40
  # Merge duplicate frames and crop frames to their changed region
  optimize: true
  # Scratch directory for GIFs (empty uses a private temp dir)
  temp_dir: ""

# Calls allowed per window for each action category
quota:
  search:       { max_calls: 37,  window: 15m }
  favorite:     { max_calls: 375, window: 15m }
  repost:       { max_calls: 337, window: 15m }
  media_upload: { max_calls: 375, window: 15m }
  post_create:  { max_calls: 300, window: 3h }

# Retries of transient Tenor failures (network, 429, 5xx)
retry:
  enabled: true
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
  multiplier: 2.0
  jitter_factor: 0.1

logging:
  # debug, info, warn, error
  level: "info"
  # Optional log file, required to keep logs while the dashboard is shown
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".sigmabot.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store credentials with 'sigmabot auth login' or export TWITTER_* and TENOR_API_KEY")
	fmt.Println("2. Run 'sigmabot config validate' to check the configuration")
	fmt.Println("3. Start the bot with 'sigmabot run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, baseFlags())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(maskSecrets(*cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TWITTER_*, TENOR_*, SIGMABOT_*)")
	fmt.Println("3. .env file")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (default locations)")
	}
	fmt.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, baseFlags())
	if err != nil {
		return err
	}

	var problems []error
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if cfg.Media.TempDir != "" {
		if err := os.MkdirAll(cfg.Media.TempDir, 0700); err != nil {
			problems = append(problems, fmt.Errorf("cannot create media directory: %w", err))
		}
	}
	if err := errors.Join(problems...); err != nil {
		return fmt.Errorf("configuration has errors:\n%w", err)
	}

	resolveStoredCredentials(cfg, logger.NewNopLogger())
	if err := cfg.RequireCredentials(); err != nil {
		ui.PrintWarning("Credentials incomplete", err)
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Search: %q every %s\n", cfg.Engagement.SearchQuery, cfg.Engagement.PollInterval)
	fmt.Printf("  Reply: %q with a %q GIF\n", cfg.Engagement.ReplyText, cfg.Engagement.MediaTerm)
	fmt.Printf("  Media budget: %d bytes\n", cfg.Media.MaxBytes)
	limits := cfg.Quota.Limits()
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		limit := limits[name]
		fmt.Printf("  Quota %-12s %d calls / %s\n", name+":", limit.MaxCalls, limit.Window)
	}
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// maskSecrets returns a copy of cfg safe to print
func maskSecrets(cfg config.Config) config.Config {
	cfg.Platform.Password = mask(cfg.Platform.Password)
	cfg.Tenor.APIKey = mask(cfg.Tenor.APIKey)
	return cfg
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:2] + "..." + s[len(s)-2:]
	default:
		return "***"
	}
}
