package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Policy        PolicyConfig
	Identity      IdentityConfig
	RateLimit     RateLimitConfig
	Runtime       RuntimeConfig
	Throttle      ThrottleConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PolicyConfig locates the role policy table
type PolicyConfig struct {
	File string
}

// IdentityConfig holds the caller-to-role mapping sources.
// RoleMapJSON (the SKILLGATE_ROLE_MAP env var) takes precedence over File
// so operators can override mappings without a redeploy.
type IdentityConfig struct {
	RoleMapJSON string
	File        string
	DefaultRole string
}

// RateLimitConfig holds the per-caller sliding window configuration
type RateLimitConfig struct {
	Window time.Duration
}

// RuntimeConfig holds the downstream agent runtime endpoint configuration
type RuntimeConfig struct {
	URL     string
	Token   string
	Session string
	Timeout time.Duration
}

// ThrottleConfig holds the per-source HTTP edge throttle configuration
type ThrottleConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			// Write timeout must cover a full runtime invocation
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "180s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Policy: PolicyConfig{
			File: getEnv("POLICY_FILE", "config/roles.yaml"),
		},
		Identity: IdentityConfig{
			RoleMapJSON: os.Getenv("SKILLGATE_ROLE_MAP"),
			File:        getEnv("IDENTITY_FILE", "config/identity_map.yaml"),
			DefaultRole: getEnv("DEFAULT_ROLE", "readonly"),
		},
		RateLimit: RateLimitConfig{
			Window: parseDuration("RATE_WINDOW", "60s"),
		},
		Runtime: RuntimeConfig{
			URL:     getEnv("RUNTIME_URL", "http://localhost:3000"),
			Token:   os.Getenv("RUNTIME_TOKEN"),
			Session: getEnv("RUNTIME_SESSION", "main"),
			Timeout: parseDuration("RUNTIME_TIMEOUT", "120s"),
		},
		Throttle: ThrottleConfig{
			RequestsPerSecond: float64(parseInt("THROTTLE_RPS", 10)),
			Burst:             parseInt("THROTTLE_BURST", 20),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "skillgate"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Policy.File == "" {
		return fmt.Errorf("POLICY_FILE is required")
	}
	if c.Identity.DefaultRole == "" {
		return fmt.Errorf("DEFAULT_ROLE must not be empty")
	}
	if c.Runtime.URL == "" {
		return fmt.Errorf("RUNTIME_URL is required")
	}
	if c.Runtime.Timeout <= 0 {
		return fmt.Errorf("RUNTIME_TIMEOUT must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_WINDOW must be positive")
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

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
