package config

import (
	"fmt"
	"time"
)

// Validate rejects configurations that cannot work. An absent cache is valid: the
// service runs uncached.
func Validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535")
	}

	if cfg.Database.Host != "" && cfg.Database.URL == "" {
		if cfg.Database.Port == 0 {
			return fmt.Errorf("database.port is required when database.host is set")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required when database.host is set")
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database.database is required when database.host is set")
		}
	}

	switch cfg.Cache.Backend {
	case CacheBackendRedis:
		if cfg.Cache.URL == "" && cfg.Cache.Host == "" {
			return fmt.Errorf("cache.url or cache.host is required for the redis backend")
		}
	case CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("cache.backend must be one of redis, memory, none (got %q)", cfg.Cache.Backend)
	}
	if cfg.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache.default_ttl must be positive")
	}
	if cfg.Cache.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("cache.reconnect_max_attempts must not be negative")
	}
	if cfg.Cache.ReconnectMaxBackoff < cfg.Cache.ReconnectInitialBackoff {
		return fmt.Errorf("cache.reconnect_max_backoff must be >= cache.reconnect_initial_backoff")
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		return fmt.Errorf("metrics.port is required when metrics are enabled")
	}

	return nil
}

// applyDefaults fills unset values.
func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "lovetree"
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "development"
	}

	// Server
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20
	}

	// Database
	if cfg.Database.Port == 0 && cfg.Database.Host != "" {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 25
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.MaxConnLifetime == 0 {
		cfg.Database.MaxConnLifetime = time.Hour
	}
	if cfg.Database.MaxConnIdleTime == 0 {
		cfg.Database.MaxConnIdleTime = 10 * time.Minute
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 10 * time.Second
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = 10 * time.Second
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "prefer"
	}

	// Cache
	if cfg.Cache.Backend == "" {
		if cfg.Cache.URL != "" || cfg.Cache.Host != "" {
			cfg.Cache.Backend = CacheBackendRedis
		} else {
			cfg.Cache.Backend = CacheBackendNone
		}
	}
	if cfg.Cache.Port == 0 && cfg.Cache.Host != "" {
		cfg.Cache.Port = 6379
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "lovetree"
	}
	if cfg.Cache.MaxRetries == 0 {
		cfg.Cache.MaxRetries = 1
	}
	if cfg.Cache.DialTimeout == 0 {
		cfg.Cache.DialTimeout = 3 * time.Second
	}
	if cfg.Cache.ReadTimeout == 0 {
		cfg.Cache.ReadTimeout = time.Second
	}
	if cfg.Cache.WriteTimeout == 0 {
		cfg.Cache.WriteTimeout = time.Second
	}
	if cfg.Cache.PoolSize == 0 {
		cfg.Cache.PoolSize = 10
	}
	if cfg.Cache.MinIdleConns == 0 {
		cfg.Cache.MinIdleConns = 2
	}
	if cfg.Cache.OperationTimeout == 0 {
		cfg.Cache.OperationTimeout = 2 * time.Second
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 30 * time.Minute
	}
	if cfg.Cache.ReconnectMaxAttempts == 0 {
		cfg.Cache.ReconnectMaxAttempts = 10
	}
	if cfg.Cache.ReconnectInitialBackoff == 0 {
		cfg.Cache.ReconnectInitialBackoff = 100 * time.Millisecond
	}
	if cfg.Cache.ReconnectMaxBackoff == 0 {
		cfg.Cache.ReconnectMaxBackoff = 3 * time.Second
	}
	if cfg.Cache.MemoryMaxEntries == 0 {
		cfg.Cache.MemoryMaxEntries = 10000
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	// Metrics
	if cfg.Metrics.Port == 0 && cfg.Metrics.Enabled {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = cfg.Service.Name
	}

	// Tracing
	if cfg.Tracing.SampleRate == 0 && cfg.Tracing.Enabled {
		cfg.Tracing.SampleRate = 0.1
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.Service.Name
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = cfg.Service.Env
	}
	if cfg.Tracing.ExportMode == "" {
		cfg.Tracing.ExportMode = "grpc"
	}
	if cfg.Tracing.BatchTimeout == 0 {
		cfg.Tracing.BatchTimeout = 5 * time.Second
	}
}
