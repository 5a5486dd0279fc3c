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

// Config holds all configuration options for the forum scraper
type Config struct {
	// Per-platform scraping and pacing settings, keyed by platform name
	// (reddit, hackernews)
	Platforms map[string]PlatformConfig `yaml:"platforms" json:"platforms"`

	// Scrape session settings shared across platforms
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Storage settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PlatformConfig holds rate limiting and retry configuration for one platform
type PlatformConfig struct {
	// Sliding-window request caps. Zero disables that window.
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour" json:"requests_per_hour"`

	// Retry and backoff settings for page fetches
	MaxRetries              int           `yaml:"max_retries" json:"max_retries"`
	BackoffMultiplier       float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	InitialDelay            time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay                time.Duration `yaml:"max_delay" json:"max_delay"`
	RespectRateLimitHeaders bool          `yaml:"respect_rate_limit_headers" json:"respect_rate_limit_headers"`

	// Fetch settings
	PageSize       int           `yaml:"page_size" json:"page_size"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
}

// ScrapeConfig holds session orchestration settings
type ScrapeConfig struct {
	// SaveInterval bounds how often in-flight progress (counters + resume
	// token) is flushed to the session store during the fetch loop. Zero
	// flushes after every batch. Status transitions are always flushed
	// immediately regardless of this value.
	SaveInterval time.Duration `yaml:"save_interval" json:"save_interval"`
}

// StorageConfig holds SQLite storage configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
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
		Platforms: map[string]PlatformConfig{
			"reddit": {
				RequestsPerSecond:       1,
				RequestsPerMinute:       60,
				RequestsPerHour:         600,
				MaxRetries:              3,
				BackoffMultiplier:       2.0,
				InitialDelay:            1 * time.Second,
				MaxDelay:                60 * time.Second,
				RespectRateLimitHeaders: true,
				PageSize:                100,
				RequestTimeout:          30 * time.Second,
				BaseURL:                 "https://www.reddit.com",
				UserAgent:               "forumscraper/1.0 (research tool)",
			},
			"hackernews": {
				RequestsPerSecond:       2,
				RequestsPerMinute:       120,
				RequestsPerHour:         3000,
				MaxRetries:              3,
				BackoffMultiplier:       2.0,
				InitialDelay:            1 * time.Second,
				MaxDelay:                30 * time.Second,
				RespectRateLimitHeaders: false,
				PageSize:                30,
				RequestTimeout:          15 * time.Second,
				BaseURL:                 "https://hacker-news.firebaseio.com",
				UserAgent:               "forumscraper/1.0 (research tool)",
			},
		},
		Scrape: ScrapeConfig{
			SaveInterval: 5 * time.Second,
		},
		Storage: StorageConfig{
			DatabasePath: "./forumscraper.db",
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

// Platform returns the configuration for the named platform, falling back to
// reddit-like defaults for unknown platforms.
func (c *Config) Platform(name string) PlatformConfig {
	if pc, ok := c.Platforms[strings.ToLower(name)]; ok {
		return pc
	}
	return DefaultConfig().Platforms["reddit"]
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if dbPath := os.Getenv("FORUMSCRAPER_DATABASE_PATH"); dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}

	if logLevel := os.Getenv("FORUMSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("FORUMSCRAPER_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	// Per-platform rate limit overrides, e.g. FORUMSCRAPER_REDDIT_REQUESTS_PER_MINUTE
	for name, pc := range c.Platforms {
		prefix := "FORUMSCRAPER_" + strings.ToUpper(name) + "_"
		if rpm := os.Getenv(prefix + "REQUESTS_PER_MINUTE"); rpm != "" {
			var val int
			fmt.Sscanf(rpm, "%d", &val)
			if val > 0 {
				pc.RequestsPerMinute = val
			}
		}
		if rps := os.Getenv(prefix + "REQUESTS_PER_SECOND"); rps != "" {
			var val int
			fmt.Sscanf(rps, "%d", &val)
			if val > 0 {
				pc.RequestsPerSecond = val
			}
		}
		if retries := os.Getenv(prefix + "MAX_RETRIES"); retries != "" {
			var val int
			fmt.Sscanf(retries, "%d", &val)
			if val >= 0 {
				pc.MaxRetries = val
			}
		}
		if ua := os.Getenv(prefix + "USER_AGENT"); ua != "" {
			pc.UserAgent = ua
		}
		c.Platforms[name] = pc
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
		".forumscraper.yaml",
		".forumscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "forumscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "forumscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".forumscraper.yaml"),
		filepath.Join(os.Getenv("HOME"), ".forumscraper.yml"),
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

	if len(c.Platforms) == 0 {
		errs = append(errs, errors.New("at least one platform must be configured"))
	}

	for name, pc := range c.Platforms {
		if pc.RequestsPerSecond <= 0 && pc.RequestsPerMinute <= 0 && pc.RequestsPerHour <= 0 {
			errs = append(errs, fmt.Errorf("platform %s: at least one rate limit window must be positive", name))
		}
		if pc.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("platform %s: max retries cannot be negative", name))
		}
		if pc.BackoffMultiplier < 1.0 {
			errs = append(errs, fmt.Errorf("platform %s: backoff multiplier must be at least 1.0", name))
		}
		if pc.InitialDelay <= 0 {
			errs = append(errs, fmt.Errorf("platform %s: initial delay must be positive", name))
		}
		if pc.MaxDelay < pc.InitialDelay {
			errs = append(errs, fmt.Errorf("platform %s: max delay must be at least initial delay", name))
		}
		if pc.PageSize <= 0 {
			errs = append(errs, fmt.Errorf("platform %s: page size must be positive", name))
		}
		if pc.RequestTimeout <= 0 {
			errs = append(errs, fmt.Errorf("platform %s: request timeout must be positive", name))
		}
	}

	// Zero persists after every batch
	if c.Scrape.SaveInterval < 0 {
		errs = append(errs, errors.New("save interval cannot be negative"))
	}

	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
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
	if dbPath, ok := flags["database"].(string); ok && dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		for name, pc := range c.Platforms {
			pc.RequestsPerMinute = rpm
			c.Platforms[name] = pc
		}
	}
	if retries, ok := flags["max-retries"].(int); ok && retries >= 0 {
		for name, pc := range c.Platforms {
			pc.MaxRetries = retries
			c.Platforms[name] = pc
		}
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".forumscraper.env"))

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
