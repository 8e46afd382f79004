// Package config loads application configuration from environment variables.
//
// All variables use the KNOWTED_ prefix. Every value has a sane default except
// the Postgres URL, which is required.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knowted/knowted/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Billing       BillingConfig
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

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis configuration for the distributed rate limiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// AuthConfig holds identity resolution configuration
type AuthConfig struct {
	// OIDCIssuerURL is the external auth provider used to verify bearer
	// tokens. Token verification is fully delegated to this provider.
	OIDCIssuerURL string
	OIDCClientID  string

	// APIKeysEnabled allows authentication via X-API-Key in addition to
	// bearer tokens.
	APIKeysEnabled bool
}

// BillingConfig holds the Stripe webhook configuration. Subscription state is
// consumed read-only from webhook events; nothing here calls out to Stripe.
type BillingConfig struct {
	StripeWebhookSecret string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Billing:       loadBillingConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("KNOWTED_HOST", "0.0.0.0"),
		Port:            getEnv("KNOWTED_PORT", "8080"),
		ReadTimeout:     getEnvDuration("KNOWTED_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("KNOWTED_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("KNOWTED_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("KNOWTED_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("KNOWTED_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("KNOWTED_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("KNOWTED_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("KNOWTED_POSTGRES_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("KNOWTED_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	addr := getEnv("KNOWTED_REDIS_ADDR", "")
	return RedisConfig{
		Addr:     addr,
		Password: getEnv("KNOWTED_REDIS_PASSWORD", ""),
		DB:       getEnvInt("KNOWTED_REDIS_DB", 0),
		Enabled:  addr != "",
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDCIssuerURL:  getEnv("KNOWTED_OIDC_ISSUER_URL", ""),
		OIDCClientID:   getEnv("KNOWTED_OIDC_CLIENT_ID", ""),
		APIKeysEnabled: getEnvBool("KNOWTED_API_KEYS_ENABLED", true),
	}
}

func loadBillingConfig() BillingConfig {
	return BillingConfig{
		StripeWebhookSecret: getEnv("KNOWTED_STRIPE_WEBHOOK_SECRET", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("KNOWTED_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("KNOWTED_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("KNOWTED_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("KNOWTED_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("KNOWTED_OTEL_SERVICE_NAME", "knowted-api"),
		OTelServiceVersion: getEnv("KNOWTED_OTEL_SERVICE_VERSION", "dev"),
		OTelInsecure:       getEnvBool("KNOWTED_OTEL_INSECURE", true),
	}
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("KNOWTED_POSTGRES_URL is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must differ")
	}
	if c.Auth.OIDCIssuerURL != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("KNOWTED_OIDC_CLIENT_ID is required when an OIDC issuer is configured")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

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

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return strings.ToLower(val) == "true" || val == "1"
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
