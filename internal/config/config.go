// Package config provides configuration management for the storefront service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for the persisted key-value state.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultCORSOrigin      = "*"
	DefaultAPIBaseURL      = "http://localhost:4000"
	DefaultRequestTimeout  = 10 * time.Second
	DefaultBreakerEnabled  = true
	DefaultStorageBackend  = StorageFile
	DefaultStoragePath     = "storefront-data.json"
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisDB         = 0
	DefaultRedisPrefix     = "storefront:"
	DefaultCheckoutPhone   = "573155230570"
	DefaultUploadMaxBytes  = 5 << 20
	DefaultUploadMaxWidth  = 1200
	DefaultPageSize        = 6
)

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvOTLPEndpoint    = "APP_OTLP_ENDPOINT"
	EnvCORSOrigins     = "APP_CORS_ALLOWED_ORIGINS"
	EnvAPIBaseURL      = "APP_API_BASE_URL"
	EnvRequestTimeout  = "APP_REQUEST_TIMEOUT"
	EnvBreakerEnabled  = "APP_BREAKER_ENABLED"
	EnvStorageBackend  = "APP_STORAGE_BACKEND"
	EnvStoragePath     = "APP_STORAGE_PATH"
	EnvRedisAddr       = "APP_REDIS_ADDR"
	EnvRedisDB         = "APP_REDIS_DB"
	EnvRedisPrefix     = "APP_REDIS_PREFIX"
	EnvCheckoutPhone   = "APP_CHECKOUT_PHONE"
	EnvUploadMaxBytes  = "APP_UPLOAD_MAX_BYTES"
	EnvUploadMaxWidth  = "APP_UPLOAD_MAX_WIDTH"
	EnvPageSize        = "APP_PAGE_SIZE"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	OTLPEndpoint    string
	// CORSOrigins are the browser origins allowed to call the service;
	// "*" allows any origin.
	CORSOrigins []string

	// Backend API settings.
	APIBaseURL     string
	RequestTimeout time.Duration
	BreakerEnabled bool

	// Storage settings. StoragePath is the JSON file for the file backend
	// and the database file for the sqlite backend.
	StorageBackend string
	StoragePath    string
	RedisAddr      string
	RedisDB        int
	RedisPrefix    string

	// Storefront settings.
	CheckoutPhone  string
	UploadMaxBytes int64
	UploadMaxWidth int
	PageSize       int
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrMissingCORSOrigins     = errors.New("at least one CORS origin must be allowed")
	ErrInvalidAPIBaseURL      = errors.New("API base URL must be an absolute http or https URL")
	ErrInvalidRequestTimeout  = errors.New("request timeout must be positive")
	ErrInvalidStorageBackend  = errors.New(
		"storage backend must be one of: memory, file, redis, sqlite",
	)
	ErrMissingStoragePath = errors.New(
		"storage path must be set when storage backend is file or sqlite",
	)
	ErrMissingRedisAddr = errors.New(
		"redis address must be set when storage backend is redis",
	)
	ErrInvalidRedisDB        = errors.New("redis DB must not be negative")
	ErrMissingCheckoutPhone  = errors.New("checkout phone must not be empty")
	ErrInvalidUploadMaxBytes = errors.New("upload max bytes must be positive")
	ErrInvalidUploadMaxWidth = errors.New("upload max width must be positive")
	ErrInvalidPageSize       = errors.New("page size must be positive")
)

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      DefaultServerPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		CORSOrigins:     []string{DefaultCORSOrigin},
		APIBaseURL:      DefaultAPIBaseURL,
		RequestTimeout:  DefaultRequestTimeout,
		BreakerEnabled:  DefaultBreakerEnabled,
		StorageBackend:  DefaultStorageBackend,
		StoragePath:     DefaultStoragePath,
		RedisAddr:       DefaultRedisAddr,
		RedisDB:         DefaultRedisDB,
		RedisPrefix:     DefaultRedisPrefix,
		CheckoutPhone:   DefaultCheckoutPhone,
		UploadMaxBytes:  DefaultUploadMaxBytes,
		UploadMaxWidth:  DefaultUploadMaxWidth,
		PageSize:        DefaultPageSize,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	if err := c.loadAPIEnv(); err != nil {
		return err
	}

	if err := c.loadStorageEnv(); err != nil {
		return err
	}

	return c.loadStorefrontEnv()
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	if val := os.Getenv(EnvOTLPEndpoint); val != "" {
		c.OTLPEndpoint = val
	}

	if val, ok := os.LookupEnv(EnvCORSOrigins); ok {
		c.CORSOrigins = splitList(val)
	}

	return nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadAPIEnv loads backend API environment variables.
func (c *Config) loadAPIEnv() error {
	if val := os.Getenv(EnvAPIBaseURL); val != "" {
		c.APIBaseURL = val
	}

	if val := os.Getenv(EnvRequestTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = timeout
	}

	if val := os.Getenv(EnvBreakerEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvBreakerEnabled, err)
		}
		c.BreakerEnabled = enabled
	}

	return nil
}

// loadStorageEnv loads key-value storage environment variables.
func (c *Config) loadStorageEnv() error {
	if val := os.Getenv(EnvStorageBackend); val != "" {
		c.StorageBackend = val
	}

	if val := os.Getenv(EnvStoragePath); val != "" {
		c.StoragePath = val
	}

	if val := os.Getenv(EnvRedisAddr); val != "" {
		c.RedisAddr = val
	}

	if val := os.Getenv(EnvRedisDB); val != "" {
		db, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvRedisDB, err)
		}
		c.RedisDB = db
	}

	if val := os.Getenv(EnvRedisPrefix); val != "" {
		c.RedisPrefix = val
	}

	return nil
}

// loadStorefrontEnv loads checkout, upload and listing settings.
func (c *Config) loadStorefrontEnv() error {
	if val := os.Getenv(EnvCheckoutPhone); val != "" {
		c.CheckoutPhone = val
	}

	if val := os.Getenv(EnvUploadMaxBytes); val != "" {
		size, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvUploadMaxBytes, err)
		}
		c.UploadMaxBytes = size
	}

	if val := os.Getenv(EnvUploadMaxWidth); val != "" {
		width, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvUploadMaxWidth, err)
		}
		c.UploadMaxWidth = width
	}

	if val := os.Getenv(EnvPageSize); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvPageSize, err)
		}
		c.PageSize = size
	}

	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	return c.validateStorefront()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if len(c.CORSOrigins) == 0 {
		return ErrMissingCORSOrigins
	}

	return nil
}

// validateAPI validates backend API configuration.
func (c *Config) validateAPI() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIBaseURL
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}

	return nil
}

// validateStorage validates the storage backend and its requirements.
func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if c.StoragePath == "" {
			return ErrMissingStoragePath
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
		if c.RedisDB < 0 {
			return ErrInvalidRedisDB
		}
	default:
		return ErrInvalidStorageBackend
	}

	return nil
}

// validateStorefront validates checkout, upload and listing settings.
func (c *Config) validateStorefront() error {
	if c.CheckoutPhone == "" {
		return ErrMissingCheckoutPhone
	}

	if c.UploadMaxBytes <= 0 {
		return ErrInvalidUploadMaxBytes
	}

	if c.UploadMaxWidth <= 0 {
		return ErrInvalidUploadMaxWidth
	}

	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
