// package config loads application configuration from a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile is looked up in the working directory when ARC_CONFIG is unset.
const defaultConfigFile = "console.yaml"

var (
	// ErrServerURLRequired is returned when no archive server address is configured.
	ErrServerURLRequired = errors.New("server url is required")
	// ErrInvalidServerURL is returned when the configured address is not an http(s) URL.
	ErrInvalidServerURL = errors.New("server url must be an absolute http or https URL")
)

// Config holds all application configuration.
type Config struct {
	// server
	ServerURL string `yaml:"server_url"`
	AuthToken string `yaml:"auth_token"`

	// client behavior
	RequestTimeoutSec int     `yaml:"request_timeout_seconds"`
	RateLimitRPS      float64 `yaml:"rate_limit_rps"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	RetryMaxAttempts  int     `yaml:"retry_max_attempts"`
	PageSize          int     `yaml:"page_size"`

	// downloads
	DownloadDir string `yaml:"download_dir"`

	// local state
	StateDBPath  string `yaml:"state_db_path"`
	HistoryLimit int    `yaml:"history_limit"`

	// logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads configuration in three layers: defaults, then an optional YAML
// file (ARC_CONFIG, falling back to ./console.yaml), then environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	path := getEnv("ARC_CONFIG", defaultConfigFile)
	if err := cfg.applyFile(path, path == defaultConfigFile); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerURL:         "http://localhost:8090",
		RequestTimeoutSec: 30,
		RateLimitRPS:      10,
		RateLimitBurst:    20,
		RetryMaxAttempts:  3,
		PageSize:          50,
		DownloadDir:       "./downloads",
		StateDBPath:       "./console-state.db",
		HistoryLimit:      50,
		LogLevel:          "info",
		LogFile:           "",
	}
}

// applyFile overlays values from a YAML file. A missing file is only
// tolerated for the implicit default path.
func (c *Config) applyFile(path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides individual fields from environment variables.
func (c *Config) applyEnv() {
	c.ServerURL = getEnv("ARC_SERVER_URL", c.ServerURL)
	c.AuthToken = getEnv("ARC_AUTH_TOKEN", c.AuthToken)
	c.RequestTimeoutSec = getEnvInt("ARC_REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSec)
	c.RateLimitRPS = getEnvFloat("ARC_RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("ARC_RATE_LIMIT_BURST", c.RateLimitBurst)
	c.RetryMaxAttempts = getEnvInt("ARC_RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.PageSize = getEnvInt("ARC_PAGE_SIZE", c.PageSize)
	c.DownloadDir = getEnv("ARC_DOWNLOAD_DIR", c.DownloadDir)
	c.StateDBPath = getEnv("ARC_STATE_DB", c.StateDBPath)
	c.HistoryLimit = getEnvInt("ARC_HISTORY_LIMIT", c.HistoryLimit)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrServerURLRequired
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = 30
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 1
	}
	if c.PageSize < 1 {
		c.PageSize = 50
	}
	if c.HistoryLimit < 1 {
		c.HistoryLimit = 50
	}
	return nil
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// WSURL derives the live-update websocket endpoint from the server URL.
func (c *Config) WSURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
