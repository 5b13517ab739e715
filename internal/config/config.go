package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/blacktop/threadpost/internal/threads"
)

const (
	envUserID      = "THREADPOST_USER_ID"
	envAccessToken = "THREADPOST_ACCESS_TOKEN"
)

// Config holds all threadpost settings.
type Config struct {
	UserID      string `env:"THREADPOST_USER_ID"`
	AccessToken string `env:"THREADPOST_ACCESS_TOKEN"`

	// API
	BaseURL      string        `env:"THREADPOST_API_BASE_URL" envDefault:"https://graph.threads.net/v1.0"`
	HTTPTimeout  time.Duration `env:"THREADPOST_HTTP_TIMEOUT" envDefault:"30s"`
	ProbeTimeout time.Duration `env:"THREADPOST_PROBE_TIMEOUT" envDefault:"5s"`

	Poll PollConfig

	// Server
	ListenAddr string `env:"THREADPOST_LISTEN_ADDR" envDefault:":8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// PollConfig holds the container readiness policy.
type PollConfig struct {
	MaxAttempts  int           `env:"THREADPOST_POLL_MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay    time.Duration `env:"THREADPOST_POLL_BASE_DELAY" envDefault:"500ms"`
	InitialDelay time.Duration `env:"THREADPOST_POLL_INITIAL_DELAY" envDefault:"0s"`
}

// Threads converts the settings into a threads.PollConfig.
func (p PollConfig) Threads() threads.PollConfig {
	return threads.PollConfig{
		MaxAttempts:  p.MaxAttempts,
		BaseDelay:    p.BaseDelay,
		InitialDelay: p.InitialDelay,
	}
}

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return "threads credentials not configured"
	}
	return fmt.Sprintf("threads credentials not configured (missing %s)", strings.Join(e.Variables, ", "))
}

// Load reads configuration from the environment, loading a .env file first
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges. Credentials are checked by ValidateForPosting.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("THREADPOST_API_BASE_URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("THREADPOST_HTTP_TIMEOUT must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("THREADPOST_PROBE_TIMEOUT must be positive")
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("THREADPOST_POLL_MAX_ATTEMPTS must be at least 1")
	}
	if c.Poll.MaxAttempts > threads.MaxPollAttempts {
		return fmt.Errorf("THREADPOST_POLL_MAX_ATTEMPTS must be at most %d", threads.MaxPollAttempts)
	}
	if c.Poll.BaseDelay <= 0 {
		return fmt.Errorf("THREADPOST_POLL_BASE_DELAY must be positive")
	}
	if c.Poll.InitialDelay < 0 {
		return fmt.Errorf("THREADPOST_POLL_INITIAL_DELAY cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	return nil
}

// ValidateForPosting checks that account credentials are present.
func (c *Config) ValidateForPosting() error {
	var missing []string
	if c.UserID == "" {
		missing = append(missing, envUserID)
	}
	if c.AccessToken == "" {
		missing = append(missing, envAccessToken)
	}
	if len(missing) > 0 {
		return MissingEnvError{Variables: missing}
	}
	return nil
}

// Credentials returns the configured account credentials.
func (c *Config) Credentials() threads.Credentials {
	return threads.Credentials{UserID: c.UserID, AccessToken: c.AccessToken}
}
