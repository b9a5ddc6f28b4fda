// Package config provides configuration management for the pixel backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Platform  PlatformConfig
	Pull      PullConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by the migration tooling.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// PlatformConfig holds the commerce platform app credentials and endpoints.
type PlatformConfig struct {
	// APISecret is the shared app secret used to verify webhook signatures.
	APISecret string
	// AppURL is the public base URL of this backend; the webhook callback
	// URL is derived from it.
	AppURL string
	// APIVersion selects the Admin API version for GraphQL calls.
	APIVersion string
}

// CallbackURL returns the webhook callback URL registered with the platform.
func (c *PlatformConfig) CallbackURL() string {
	base := c.AppURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/webhooks"
}

// PullConfig holds bulk data pull configuration
type PullConfig struct {
	Workers          int
	DefaultBatchSize int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	StatusTTL        time.Duration
	ResultTTL        time.Duration
	QueueKey         string
	DequeueTimeout   time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// EventsPerWindow limits event ingestion per account id.
	EventsPerWindow int
	EventWindow     time.Duration
	// APIRequestsPerSecond is the generic per-client limit on API routes.
	APIRequestsPerSecond int
	APIBurst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "pixel_backend"),
				User:           getEnv("POSTGRES_USER", "pixel"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Platform: PlatformConfig{
			APISecret:  getEnv("PLATFORM_API_SECRET", ""),
			AppURL:     getEnv("PLATFORM_APP_URL", ""),
			APIVersion: getEnv("PLATFORM_API_VERSION", "2024-01"),
		},
		Pull: PullConfig{
			Workers:          getEnvAsInt("PULL_WORKERS", 5),
			DefaultBatchSize: getEnvAsInt("PULL_DEFAULT_BATCH_SIZE", 100),
			MaxRetries:       getEnvAsInt("PULL_MAX_RETRIES", 3),
			RetryBaseDelay:   getEnvAsDuration("PULL_RETRY_BASE_DELAY", 5*time.Second),
			RetryMaxDelay:    getEnvAsDuration("PULL_RETRY_MAX_DELAY", 60*time.Second),
			StatusTTL:        getEnvAsDuration("PULL_STATUS_TTL", 24*time.Hour),
			ResultTTL:        getEnvAsDuration("PULL_RESULT_TTL", time.Hour),
			QueueKey:         getEnv("PULL_QUEUE_KEY", "pull:queue"),
			DequeueTimeout:   getEnvAsDuration("PULL_DEQUEUE_TIMEOUT", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			EventsPerWindow:      getEnvAsInt("RATE_LIMIT_EVENTS_PER_WINDOW", 100),
			EventWindow:          getEnvAsDuration("RATE_LIMIT_EVENT_WINDOW", time.Minute),
			APIRequestsPerSecond: getEnvAsInt("RATE_LIMIT_API_RPS", 50),
			APIBurst:             getEnvAsInt("RATE_LIMIT_API_BURST", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Pull.Workers <= 0 {
		return fmt.Errorf("PULL_WORKERS must be positive, got %d", c.Pull.Workers)
	}
	if c.Pull.MaxRetries <= 0 {
		return fmt.Errorf("PULL_MAX_RETRIES must be positive, got %d", c.Pull.MaxRetries)
	}
	if c.RateLimit.EventsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_EVENTS_PER_WINDOW must be positive, got %d", c.RateLimit.EventsPerWindow)
	}
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", c.Database.Postgres.MaxConnections)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
