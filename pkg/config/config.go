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

// Config holds all configuration options for the engagement bot
type Config struct {
	// Platform account and API endpoint
	Platform PlatformConfig `yaml:"platform" json:"platform"`

	// Media-search service
	Tenor TenorConfig `yaml:"tenor" json:"tenor"`

	// Engagement loop behaviour
	Engagement EngagementConfig `yaml:"engagement" json:"engagement"`

	// Media fitting
	Media MediaConfig `yaml:"media" json:"media"`

	// Per-category call budgets
	Quota QuotaConfig `yaml:"quota" json:"quota"`

	// Retry policy for transient HTTP failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PlatformConfig holds social-platform account and endpoint configuration
type PlatformConfig struct {
	Username       string        `yaml:"username" json:"username"`
	Email          string        `yaml:"email" json:"email"`
	Password       string        `yaml:"password" json:"password"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Language       string        `yaml:"language" json:"language"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// TenorConfig holds media-search service configuration
type TenorConfig struct {
	APIKey            string        `yaml:"api_key" json:"api_key"`
	ClientKey         string        `yaml:"client_key" json:"client_key"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	ResultLimit       int           `yaml:"result_limit" json:"result_limit"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// EngagementConfig holds the poll/match loop configuration
type EngagementConfig struct {
	SearchQuery  string        `yaml:"search_query" json:"search_query"`
	SearchMode   string        `yaml:"search_mode" json:"search_mode"`
	MediaTerm    string        `yaml:"media_term" json:"media_term"`
	ReplyText    string        `yaml:"reply_text" json:"reply_text"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Cooldown     time.Duration `yaml:"cooldown" json:"cooldown"`
	SeenWindow   int           `yaml:"seen_window" json:"seen_window"`
}

// MediaConfig holds media fitting configuration
type MediaConfig struct {
	MaxBytes      int     `yaml:"max_bytes" json:"max_bytes"`
	ScaleFactor   float64 `yaml:"scale_factor" json:"scale_factor"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`
	Optimize      bool    `yaml:"optimize" json:"optimize"`
	TempDir       string  `yaml:"temp_dir" json:"temp_dir"`
}

// QuotaLimit is a single category budget
type QuotaLimit struct {
	MaxCalls int           `yaml:"max_calls" json:"max_calls"`
	Window   time.Duration `yaml:"window" json:"window"`
}

// QuotaConfig holds the five per-category budgets
type QuotaConfig struct {
	Search      QuotaLimit `yaml:"search" json:"search"`
	Favorite    QuotaLimit `yaml:"favorite" json:"favorite"`
	Repost      QuotaLimit `yaml:"repost" json:"repost"`
	MediaUpload QuotaLimit `yaml:"media_upload" json:"media_upload"`
	PostCreate  QuotaLimit `yaml:"post_create" json:"post_create"`
}

// RetryConfig holds retry policy configuration
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			BaseURL:        "https://api.x.com/1.1",
			Language:       "en-US",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
		},
		Tenor: TenorConfig{
			ClientKey:         "my_test_app",
			BaseURL:           "https://tenor.googleapis.com",
			ResultLimit:       50,
			RequestsPerSecond: 1,
			RequestTimeout:    30 * time.Second,
		},
		Engagement: EngagementConfig{
			SearchQuery:  "$sigma",
			SearchMode:   "Latest",
			MediaTerm:    "sigma",
			ReplyText:    "$SIGMA",
			PollInterval: 60 * time.Second,
			Cooldown:     5 * time.Minute,
			SeenWindow:   0,
		},
		Media: MediaConfig{
			MaxBytes:      5000000, // slightly under the 5MB upload ceiling
			ScaleFactor:   0.9,
			MaxIterations: 40,
			Optimize:      true,
		},
		Quota: QuotaConfig{
			Search:      QuotaLimit{MaxCalls: 37, Window: 15 * time.Minute},
			Favorite:    QuotaLimit{MaxCalls: 375, Window: 15 * time.Minute},
			Repost:      QuotaLimit{MaxCalls: 337, Window: 15 * time.Minute},
			MediaUpload: QuotaLimit{MaxCalls: 375, Window: 15 * time.Minute},
			PostCreate:  QuotaLimit{MaxCalls: 300, Window: 3 * time.Hour},
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Platform credentials
	if username := os.Getenv("TWITTER_USERNAME"); username != "" {
		c.Platform.Username = username
	}
	if email := os.Getenv("TWITTER_EMAIL"); email != "" {
		c.Platform.Email = email
	}
	if password := os.Getenv("TWITTER_PASSWORD"); password != "" {
		c.Platform.Password = password
	}
	if baseURL := os.Getenv("SIGMABOT_PLATFORM_URL"); baseURL != "" {
		c.Platform.BaseURL = baseURL
	}

	// Media search
	if apiKey := os.Getenv("TENOR_API_KEY"); apiKey != "" {
		c.Tenor.APIKey = apiKey
	}
	if clientKey := os.Getenv("TENOR_CLIENT_KEY"); clientKey != "" {
		c.Tenor.ClientKey = clientKey
	}

	// Engagement
	if query := os.Getenv("SIGMABOT_SEARCH_QUERY"); query != "" {
		c.Engagement.SearchQuery = query
	}
	if term := os.Getenv("SIGMABOT_MEDIA_TERM"); term != "" {
		c.Engagement.MediaTerm = term
	}
	if interval := os.Getenv("SIGMABOT_POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("invalid SIGMABOT_POLL_INTERVAL: %w", err)
		}
		c.Engagement.PollInterval = d
	}
	if window := os.Getenv("SIGMABOT_SEEN_WINDOW"); window != "" {
		var val int
		fmt.Sscanf(window, "%d", &val)
		if val >= 0 {
			c.Engagement.SeenWindow = val
		}
	}

	// Logging level
	if logLevel := os.Getenv("SIGMABOT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("SIGMABOT_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
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
	locations := []string{
		".sigmabot.yaml",
		".sigmabot.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "sigmabot", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "sigmabot", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".sigmabot.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by RequireCredentials since they may come from a credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Platform.BaseURL == "" {
		errs = append(errs, errors.New("platform base URL is required"))
	}
	if c.Platform.RequestTimeout <= 0 {
		errs = append(errs, errors.New("platform request timeout must be positive"))
	}

	if c.Tenor.BaseURL == "" {
		errs = append(errs, errors.New("tenor base URL is required"))
	}
	if c.Tenor.ResultLimit <= 0 || c.Tenor.ResultLimit > 50 {
		errs = append(errs, errors.New("tenor result limit must be between 1 and 50"))
	}
	if c.Tenor.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("tenor requests per second must be positive"))
	}

	if strings.TrimSpace(c.Engagement.SearchQuery) == "" {
		errs = append(errs, errors.New("search query is required"))
	}
	if c.Engagement.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Engagement.Cooldown <= 0 {
		errs = append(errs, errors.New("cooldown must be positive"))
	}
	if c.Engagement.SeenWindow < 0 {
		errs = append(errs, errors.New("seen window cannot be negative"))
	}

	if c.Media.MaxBytes <= 0 {
		errs = append(errs, errors.New("media max bytes must be positive"))
	}
	if c.Media.ScaleFactor <= 0 || c.Media.ScaleFactor >= 1 {
		errs = append(errs, errors.New("media scale factor must be between 0 and 1"))
	}
	if c.Media.MaxIterations <= 0 {
		errs = append(errs, errors.New("media max iterations must be positive"))
	}

	for name, limit := range c.Quota.Limits() {
		if limit.MaxCalls <= 0 {
			errs = append(errs, fmt.Errorf("quota %s: max calls must be positive", name))
		}
		if limit.Window <= 0 {
			errs = append(errs, fmt.Errorf("quota %s: window must be positive", name))
		}
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

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RequireCredentials checks that every credential needed at startup is present
func (c *Config) RequireCredentials() error {
	var errs []error

	if c.Platform.Username == "" {
		errs = append(errs, errors.New("platform username is required (TWITTER_USERNAME)"))
	}
	if c.Platform.Email == "" {
		errs = append(errs, errors.New("platform email is required (TWITTER_EMAIL)"))
	}
	if c.Platform.Password == "" {
		errs = append(errs, errors.New("platform password is required (TWITTER_PASSWORD)"))
	}
	if c.Tenor.APIKey == "" {
		errs = append(errs, errors.New("tenor API key is required (TENOR_API_KEY)"))
	}

	return errors.Join(errs...)
}

// Limits returns the quota budgets keyed by category name
func (q QuotaConfig) Limits() map[string]QuotaLimit {
	return map[string]QuotaLimit{
		"search":       q.Search,
		"favorite":     q.Favorite,
		"repost":       q.Repost,
		"media_upload": q.MediaUpload,
		"post_create":  q.PostCreate,
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

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
	if query, ok := flags["query"].(string); ok && query != "" {
		c.Engagement.SearchQuery = query
	}
	if term, ok := flags["media-term"].(string); ok && term != "" {
		c.Engagement.MediaTerm = term
	}
	if interval, ok := flags["poll-interval"].(time.Duration); ok && interval > 0 {
		c.Engagement.PollInterval = interval
	}
	if window, ok := flags["seen-window"].(int); ok && window >= 0 {
		c.Engagement.SeenWindow = window
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".sigmabot.env"))

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
