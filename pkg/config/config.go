package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trackgate/trackgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Credential store configuration
	Store StoreConfig

	// Authentication configuration
	Auth AuthConfig

	// Tracking backend defaults for new tenants
	Tracking TrackingConfig

	// Artifact root provisioning
	Artifacts ArtifactsConfig

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

// StoreConfig holds credential store configuration
type StoreConfig struct {
	Type string // "file" or "postgres"

	// File store config
	FilePath  string
	WatchFile bool

	// PostgreSQL store config
	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	BcryptCost int

	SessionTTL    time.Duration
	SweepSchedule string // cron spec for the expired-session sweeper

	// Login throttling
	LoginAttemptsPerWindow int
	LoginWindow            time.Duration

	// Optional Redis for multi-instance login throttling
	RedisURL string
}

// TrackingConfig holds defaults applied to tenants created without an
// explicit tracking URI or artifact root
type TrackingConfig struct {
	// BaseURI is a shared postgres tracking backend; tenants default to a
	// schema named after their id on it. Empty disables derivation.
	BaseURI string

	// ArtifactRootBase prefixes derived per-tenant artifact roots. Empty
	// disables derivation.
	ArtifactRootBase string
}

// ArtifactsConfig holds artifact root provisioning settings
type ArtifactsConfig struct {
	// S3 settings, used when a tenant's artifact root is an s3:// prefix
	S3Endpoint     string
	S3Region       string
	S3UsePathStyle bool
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
		Store:         loadStoreConfig(),
		Tracking:      loadTrackingConfig(),
		Auth:          loadAuthConfig(),
		Artifacts:     loadArtifactsConfig(),
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
		Host:            getEnv("TRACKGATE_HOST", "0.0.0.0"),
		Port:            getEnv("TRACKGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TRACKGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TRACKGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TRACKGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TRACKGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TRACKGATE_HEALTH_PORT", "9090"),
	}
}

// loadStoreConfig loads credential store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Type:             getEnv("TRACKGATE_STORE_TYPE", "file"),
		FilePath:         getEnv("TRACKGATE_STORE_FILE", "/var/lib/trackgate/tenants.json"),
		WatchFile:        getEnvBool("TRACKGATE_STORE_WATCH", false),
		PostgresURL:      getEnv("TRACKGATE_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("TRACKGATE_POSTGRES_MAX_CONNS", 20),
		PostgresTimeout:  getEnvDuration("TRACKGATE_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

// loadAuthConfig loads authentication configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		BcryptCost:             getEnvInt("TRACKGATE_BCRYPT_COST", bcrypt.DefaultCost),
		SessionTTL:             getEnvDuration("TRACKGATE_SESSION_TTL", 12*time.Hour),
		SweepSchedule:          getEnv("TRACKGATE_SESSION_SWEEP_SCHEDULE", "@every 5m"),
		LoginAttemptsPerWindow: getEnvInt("TRACKGATE_LOGIN_ATTEMPTS", 10),
		LoginWindow:            getEnvDuration("TRACKGATE_LOGIN_WINDOW", time.Minute),
		RedisURL:               getEnv("TRACKGATE_REDIS_URL", ""),
	}
}

// loadTrackingConfig loads tenant tracking defaults from environment
func loadTrackingConfig() TrackingConfig {
	return TrackingConfig{
		BaseURI:          getEnv("TRACKGATE_TRACKING_BASE_URI", ""),
		ArtifactRootBase: getEnv("TRACKGATE_ARTIFACT_ROOT_BASE", ""),
	}
}

// loadArtifactsConfig loads artifact provisioning configuration from environment
func loadArtifactsConfig() ArtifactsConfig {
	return ArtifactsConfig{
		S3Endpoint:     getEnv("TRACKGATE_S3_ENDPOINT", ""),
		S3Region:       getEnv("TRACKGATE_S3_REGION", ""),
		S3UsePathStyle: getEnvBool("TRACKGATE_S3_USE_PATH_STYLE", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("TRACKGATE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("TRACKGATE_METRICS_ENABLED", true),
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

	switch c.Store.Type {
	case "file":
		if c.Store.FilePath == "" {
			return fmt.Errorf("store file path is required for file storage")
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be file or postgres)", c.Store.Type)
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Auth.LoginAttemptsPerWindow <= 0 {
		return fmt.Errorf("login attempts per window must be positive")
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
