// Package config provides configuration management for the cache service.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration before the service starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - ENVIRONMENT: Deployment profile, "development" or "production" (default: development)
//
// Redis Configuration (remote cache tier):
//   - REDIS_ENABLED: Enable the remote tier (default: true)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Cache Behavior:
//   - CACHE_KEY_PREFIX: Namespace prefix for remote-tier keys (default: focuscache:)
//   - CACHE_DEFAULT_TTL: Default entry TTL in seconds (default: 300)
//   - CACHE_COMPRESSION: Compress large payloads by default (default: true)
//   - CACHE_MAX_RESPONSE_SIZE: Response size ceiling in bytes, enforced outside
//     production (default: 1048576)
//   - CACHE_CLEANUP_INTERVAL: Interval between expired-entry sweeps (default: 5m)
//
// Storage and Security:
//   - DATABASE_PATH: SQLite database file path (default: ./focuscache.db)
//   - JWT_SECRET: JWT signing secret used to identify callers (required, minimum 32 characters)
//   - TLS_CERT / TLS_KEY: Optional TLS certificate and key paths
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the cache service.
// All string fields correspond to environment variables that can be set to
// override the default values. Load the configuration with Load() and
// validate it with Validate() before use.
type Config struct {
	// Application settings
	Port        string // Server port number
	LogLevel    string // Logging level (debug, info, warn, error)
	Environment string // Deployment profile: "development" or "production"

	// Redis configuration for the remote cache tier
	RedisEnabled  bool   // Whether the remote tier is enabled at all
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Cache behavior
	CacheKeyPrefix       string // Namespace prefix for remote-tier keys
	CacheDefaultTTL      string // Default entry TTL in seconds
	CacheCompression     bool   // Whether large payloads are compressed by default
	CacheMaxResponseSize string // Response size ceiling in bytes (non-production only)
	CacheCleanupInterval string // Interval between expired-entry sweeps (e.g. "5m")

	// Storage
	DatabasePath string // Path to SQLite database file

	// Security
	JWTSecret string // Secret key for JWT validation (required)
	TLSCert   string // TLS certificate path (optional)
	TLSKey    string // TLS key path (optional)
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding default
// value is used. Call Validate() on the returned Config before use.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", true),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		CacheKeyPrefix:       getEnv("CACHE_KEY_PREFIX", "focuscache:"),
		CacheDefaultTTL:      getEnv("CACHE_DEFAULT_TTL", "300"),
		CacheCompression:     getBoolEnv("CACHE_COMPRESSION", true),
		CacheMaxResponseSize: getEnv("CACHE_MAX_RESPONSE_SIZE", "1048576"),
		CacheCleanupInterval: getEnv("CACHE_CLEANUP_INTERVAL", "5m"),

		DatabasePath: getEnv("DATABASE_PATH", "./focuscache.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TLSCert:   getEnv("TLS_CERT", ""),
		TLSKey:    getEnv("TLS_KEY", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid. The application should call
// this after Load() and before starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production'")
	}

	if c.RedisEnabled {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if ttl, err := strconv.Atoi(c.CacheDefaultTTL); err != nil || ttl < 1 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be a positive number of seconds")
	}
	if size, err := strconv.Atoi(c.CacheMaxResponseSize); err != nil || size < 1 {
		return fmt.Errorf("CACHE_MAX_RESPONSE_SIZE must be a positive number of bytes")
	}
	if _, err := time.ParseDuration(c.CacheCleanupInterval); err != nil {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be a valid duration (e.g., '5m', '30s')")
	}
	if c.CacheKeyPrefix == "" {
		return fmt.Errorf("CACHE_KEY_PREFIX must not be empty")
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be provided together")
	}

	return nil
}

// DefaultTTL returns the configured default cache TTL. Call after Validate().
func (c *Config) DefaultTTL() time.Duration {
	ttl, _ := strconv.Atoi(c.CacheDefaultTTL)
	return time.Duration(ttl) * time.Second
}

// MaxResponseSize returns the response size ceiling in bytes. Call after Validate().
func (c *Config) MaxResponseSize() int {
	size, _ := strconv.Atoi(c.CacheMaxResponseSize)
	return size
}

// CleanupInterval returns the interval between expired-entry sweeps. Call after Validate().
func (c *Config) CleanupInterval() time.Duration {
	d, _ := time.ParseDuration(c.CacheCleanupInterval)
	return d
}

// RedisDBNumber returns the Redis database index. Call after Validate().
func (c *Config) RedisDBNumber() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeNumber returns the Redis connection pool size. Call after Validate().
func (c *Config) RedisPoolSizeNumber() int {
	size, _ := strconv.Atoi(c.RedisPoolSize)
	return size
}

// IsProduction reports whether the service runs with the production profile.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
