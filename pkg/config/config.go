// Package config loads lovetree service configuration from YAML/JSON files and environment
// variables, applies defaults and validates the result.
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml", "LOVETREE")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Environment only (LOVETREE_CACHE_URL, REDIS_URL, DATABASE_URL, ...):
//	cfg := config.MustLoadFromEnv("LOVETREE")
package config

import (
	"time"
)

// Cache backends accepted by CacheConfig.Backend.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// Config is the complete configuration of a lovetree process.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
}

// DatabaseConfig configures the PostgreSQL store. When neither URL nor Host is set the
// service falls back to the in-memory store.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"` // disable, require, verify-ca, verify-full
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// Enabled reports whether a PostgreSQL connection is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// CacheConfig configures the key-value cache client.
type CacheConfig struct {
	// Backend is "redis", "memory" or "none". Empty selects redis when a URL or host is
	// configured and none otherwise.
	Backend string `mapstructure:"backend"`

	// URL is a redis:// or rediss:// connection string. It takes precedence over Host/Port.
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// KeyPrefix is prepended to every key so several deployments can share one Redis.
	KeyPrefix string `mapstructure:"key_prefix"`

	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`

	// OperationTimeout bounds every single cache call independently of the caller's context.
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`

	// DefaultTTL applies to Set calls without an explicit TTL.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// Reconnect policy: capped exponential backoff, at most ReconnectMaxAttempts attempts
	// before the client gives up and stays disconnected.
	ReconnectMaxAttempts    int           `mapstructure:"reconnect_max_attempts"`
	ReconnectInitialBackoff time.Duration `mapstructure:"reconnect_initial_backoff"`
	ReconnectMaxBackoff     time.Duration `mapstructure:"reconnect_max_backoff"`

	// MemoryMaxEntries sizes the in-process backend.
	MemoryMaxEntries int64 `mapstructure:"memory_max_entries"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint"`
	SampleRate   float64       `mapstructure:"sample_rate"`
	ServiceName  string        `mapstructure:"service_name"`
	Environment  string        `mapstructure:"environment"`
	ExportMode   string        `mapstructure:"export_mode"` // "grpc" or "http"
	Insecure     bool          `mapstructure:"insecure"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}
