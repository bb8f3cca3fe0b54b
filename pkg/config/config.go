package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loftdocs/loft/pkg/guard"
	"github.com/loftdocs/loft/pkg/store"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database store.Config
	Cache    CacheConfig
	Authz    AuthzConfig
	Audit    AuditConfig
	LogLevel logrus.Level
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CacheConfig selects and sizes the decision cache.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend  string
	RedisURL string
	Size     int
	TTL      time.Duration
}

// AuthzConfig tunes the decision engine and guards.
type AuthzConfig struct {
	BatchLimit      int
	InvitationLimit int
	InvitationTTL   time.Duration
}

// AuditConfig selects the audit sink and its retention.
type AuditConfig struct {
	// Backend is "db" or "log".
	Backend   string
	Retention time.Duration
}

// Load reads configuration from LOFT_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("LOFT_HOST", "0.0.0.0"),
			Port:            getEnv("LOFT_PORT", "8080"),
			ReadTimeout:     getEnvDuration("LOFT_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("LOFT_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("LOFT_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("LOFT_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: store.Config{
			URL:         getEnv("LOFT_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("LOFT_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("LOFT_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("LOFT_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("LOFT_POSTGRES_MAX_LIFETIME", time.Hour),
			MaxIdleTime: getEnvDuration("LOFT_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
		},
		Cache: CacheConfig{
			Backend:  getEnv("LOFT_CACHE_BACKEND", "memory"),
			RedisURL: getEnv("LOFT_REDIS_URL", ""),
			Size:     getEnvInt("LOFT_CACHE_SIZE", 4096),
			TTL:      getEnvDuration("LOFT_CACHE_TTL", 30*time.Second),
		},
		Authz: AuthzConfig{
			BatchLimit:      getEnvInt("LOFT_AUTHZ_BATCH_LIMIT", 8),
			InvitationLimit: getEnvInt("LOFT_INVITATION_LIMIT", guard.DefaultInvitationLimit),
			InvitationTTL:   getEnvDuration("LOFT_INVITATION_TTL", 7*24*time.Hour),
		},
		Audit: AuditConfig{
			Backend:   getEnv("LOFT_AUDIT_BACKEND", "db"),
			Retention: getEnvDuration("LOFT_AUDIT_RETENTION", 90*24*time.Hour),
		},
		LogLevel: parseLogLevel(getEnv("LOFT_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("LOFT_POSTGRES_URL is required")
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("LOFT_REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory, redis, or none)", c.Cache.Backend)
	}
	switch c.Audit.Backend {
	case "db", "log":
	default:
		return fmt.Errorf("invalid audit backend: %s (must be db or log)", c.Audit.Backend)
	}
	if c.Authz.BatchLimit <= 0 {
		return fmt.Errorf("batch limit must be positive")
	}
	return nil
}

func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
