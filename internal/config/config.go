// Package config provides environment-aware configuration management for
// the runtime process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	slruntime "github.com/cityos/runtime/internal/runtime"
	"github.com/joho/godotenv"
)

// Environment mirrors internal/runtime's Environment so callers that only
// import config do not need a second import for the same concept.
type Environment = slruntime.Environment

const (
	Development = slruntime.Development
	Testing     = slruntime.Testing
	Production  = slruntime.Production
)

// Config holds all runtime configuration, loaded from environment variables
// with an optional config/<env>.env overlay for local development.
type Config struct {
	Env Environment

	// Experience Edge
	RuntimePort int

	// Capability backends. RowDSN is the only hard requirement; the rest
	// fail over to in-memory implementations when left blank.
	RowDSN         string
	RedisURL       string
	BlobEndpoint   string
	GraphEndpoint  string

	// Identity
	JWTSigningKey string
	JWTExpiry     time.Duration

	// Traffic Cop
	RateLimitEnabled   bool
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Dispatcher
	TenantParallelism int
	DispatchQueueSize int

	// Logging
	LogLevel  string
	LogFormat string

	// Observability
	MetricsEnabled bool
	MetricsPort    int

	// Features
	EnableDebugEndpoints bool
	TestMode             bool
}

// Load builds a Config from the process environment, optionally overlaying
// a config/<env>.env file before reading variables. Env files are loaded
// best-effort: a missing file is not an error.
func Load() (*Config, error) {
	c := &Config{}

	c.Env = slruntime.Env()

	envFile := filepath.Join("config", string(c.Env)+".env")
	_ = godotenv.Load(envFile)

	c.RuntimePort = getIntEnv("RUNTIME_PORT", 8080)

	c.RowDSN = getEnv("ROW_DSN", "")
	if c.RowDSN == "" {
		return nil, fmt.Errorf("config: ROW_DSN is required")
	}
	c.RedisURL = getEnv("REDIS_URL", "")
	c.BlobEndpoint = getEnv("BLOB_ENDPOINT", "")
	c.GraphEndpoint = getEnv("GRAPH_ENDPOINT", "")

	c.JWTSigningKey = getEnv("JWT_SIGNING_KEY", "")
	if c.JWTSigningKey == "" && c.Env == Production {
		return nil, fmt.Errorf("config: JWT_SIGNING_KEY is required in production")
	}
	jwtExpiry := getEnv("JWT_EXPIRY", "15m")
	parsedExpiry, err := time.ParseDuration(jwtExpiry)
	if err != nil {
		return nil, fmt.Errorf("config: invalid JWT_EXPIRY: %w", err)
	}
	c.JWTExpiry = parsedExpiry

	c.RateLimitEnabled = getBoolEnv("RATE_LIMIT_ENABLED", true)
	c.RateLimitPerSecond = getFloatEnv("RATE_LIMIT_PER_SECOND", 100)
	c.RateLimitBurst = getIntEnv("RATE_LIMIT_BURST", 200)

	c.TenantParallelism = getIntEnv("TENANT_PARALLELISM", 4)
	c.DispatchQueueSize = getIntEnv("DISPATCH_QUEUE_SIZE", 256)

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")

	c.MetricsEnabled = getBoolEnv("METRICS_ENABLED", c.Env == Production)
	c.MetricsPort = getIntEnv("METRICS_PORT", 9090)

	c.EnableDebugEndpoints = getBoolEnv("ENABLE_DEBUG_ENDPOINTS", false)
	c.TestMode = getBoolEnv("TEST_MODE", false)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

// IsTesting returns true if running in testing environment.
func (c *Config) IsTesting() bool { return c.Env == Testing }

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool { return c.Env == Production }

// Validate rejects configurations that would be unsafe in production.
func (c *Config) Validate() error {
	if c.RuntimePort < 1 || c.RuntimePort > 65535 {
		return fmt.Errorf("invalid RUNTIME_PORT: %d", c.RuntimePort)
	}
	if c.TenantParallelism < 1 {
		return fmt.Errorf("TENANT_PARALLELISM must be at least 1")
	}
	if c.IsProduction() {
		if c.EnableDebugEndpoints {
			return fmt.Errorf("ENABLE_DEBUG_ENDPOINTS must be false in production")
		}
		if c.TestMode {
			return fmt.Errorf("TEST_MODE must be false in production")
		}
		if !c.RateLimitEnabled {
			return fmt.Errorf("RATE_LIMIT_ENABLED must be true in production")
		}
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
