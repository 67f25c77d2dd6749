// Package config provides configuration management for ScheduleHQ.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schedulehq/schedulehq/internal/notifications"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string // address the HTTP server binds to (default: :8080)
	BaseURL     string // external URL used in invitation links

	DatabaseURL string
	RedisURL    string // optional; enables the Redis rate limit store when set

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	SessionSecret      string
	SessionMaxAge      int // session lifetime in seconds (default: 86400)
	SessionIdleTimeout int // idle timeout in seconds, 0 to disable (default: 1800)

	SweepSchedule string // cron spec for the invitation sweeper (default: @hourly)
	RateLimit     string // limiter format, e.g. "100-M" (default: 100-M)

	SMTP notifications.SMTPConfig
}

// LoadServerConfig reads server configuration from environment variables.
// SMTP settings come from an optional YAML file named by SMTP_CONFIG_FILE.
func LoadServerConfig() (ServerConfig, error) {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	sessionMaxAge := getEnvInt("SESSION_MAX_AGE", 86400)
	if sessionMaxAge < 0 {
		sessionMaxAge = 86400
	}

	sessionIdleTimeout := getEnvInt("SESSION_IDLE_TIMEOUT", 1800)
	if sessionIdleTimeout < 0 {
		sessionIdleTimeout = 1800
	}

	cfg := ServerConfig{
		Environment: env,
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		OIDCClientID:     os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),

		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionMaxAge:      sessionMaxAge,
		SessionIdleTimeout: sessionIdleTimeout,

		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@hourly"),
		RateLimit:     getEnv("RATE_LIMIT", "100-M"),
	}

	if path := os.Getenv("SMTP_CONFIG_FILE"); path != "" {
		smtp, err := loadSMTPConfig(path)
		if err != nil {
			return ServerConfig{}, err
		}
		cfg.SMTP = smtp
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c ServerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.OIDCIssuer == "" || c.OIDCClientID == "" {
		return fmt.Errorf("OIDC_ISSUER and OIDC_CLIENT_ID are required")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	return nil
}

// loadSMTPConfig reads SMTP settings from a YAML file.
func loadSMTPConfig(path string) (notifications.SMTPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return notifications.SMTPConfig{}, fmt.Errorf("read SMTP config %s: %w", path, err)
	}

	var cfg notifications.SMTPConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return notifications.SMTPConfig{}, fmt.Errorf("parse SMTP config %s: %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return cfg, nil
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
