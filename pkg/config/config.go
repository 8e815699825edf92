package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gable-pm/gable/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Auth configuration
	Auth AuthConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds redis settings for rate limiting and invite links
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds admin token settings
type AuthConfig struct {
	// TokenTTL is the default lifetime of newly minted admin tokens.
	TokenTTL time.Duration

	// CacheTTL bounds how long a validated token is served from memory
	// before being re-checked against the database.
	CacheTTL time.Duration
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// RetentionDays is how long reassignment records are kept before the
	// retention sweeper deletes them. Zero disables the sweeper.
	RetentionDays int

	// RetentionSchedule is a cron expression for the sweeper.
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GABLE_HOST", "0.0.0.0"),
		Port:            getEnv("GABLE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GABLE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GABLE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GABLE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GABLE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GABLE_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("GABLE_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("GABLE_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("GABLE_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("GABLE_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("GABLE_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

// loadRedisConfig loads redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("GABLE_REDIS_URL", ""),
		Password:   getEnv("GABLE_REDIS_PASSWORD", ""),
		DB:         getEnvInt("GABLE_REDIS_DB", 0),
		MaxRetries: getEnvInt("GABLE_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("GABLE_REDIS_POOL_SIZE", 10),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenTTL: getEnvDuration("GABLE_TOKEN_TTL", 90*24*time.Hour),
		CacheTTL: getEnvDuration("GABLE_TOKEN_CACHE_TTL", 5*time.Minute),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetentionDays:     getEnvInt("GABLE_AUDIT_RETENTION_DAYS", 365),
		RetentionSchedule: getEnv("GABLE_AUDIT_RETENTION_SCHEDULE", "0 3 * * *"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("GABLE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("GABLE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required (GABLE_POSTGRES_URL)")
	}
	if c.Database.MaxOpenConns < c.Database.MaxIdleConns {
		return fmt.Errorf("max open connections (%d) must be >= idle connections (%d)",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days cannot be negative")
	}
	if c.Audit.RetentionDays > 0 && c.Audit.RetentionSchedule == "" {
		return fmt.Errorf("audit retention schedule is required when retention is enabled")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
