package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestLoad verifies configuration loading from a YAML file.
func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
service:
  name: lovetree-api
  version: 1.2.0
  env: staging

server:
  http_port: 8081

database:
  host: localhost
  port: 5432
  database: lovetree
  user: lovetree
  password: secret
  ssl_mode: disable

cache:
  host: localhost
  port: 6379
  key_prefix: lt
  default_ttl: 10m
  reconnect_max_attempts: 4

log:
  level: debug
  format: console

metrics:
  enabled: true
  port: 9191
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Name != "lovetree-api" {
		t.Errorf("Service.Name = %v, want lovetree-api", cfg.Service.Name)
	}
	if cfg.Server.HTTPPort != 8081 {
		t.Errorf("Server.HTTPPort = %v, want 8081", cfg.Server.HTTPPort)
	}
	if !cfg.Database.Enabled() {
		t.Error("Database.Enabled() = false, want true")
	}
	if cfg.Cache.Backend != CacheBackendRedis {
		t.Errorf("Cache.Backend = %q, want redis (inferred from host)", cfg.Cache.Backend)
	}
	if cfg.Cache.KeyPrefix != "lt" {
		t.Errorf("Cache.KeyPrefix = %q, want lt", cfg.Cache.KeyPrefix)
	}
	if cfg.Cache.DefaultTTL != 10*time.Minute {
		t.Errorf("Cache.DefaultTTL = %v, want 10m", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.ReconnectMaxAttempts != 4 {
		t.Errorf("Cache.ReconnectMaxAttempts = %d, want 4", cfg.Cache.ReconnectMaxAttempts)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("Log.Format = %q, want console", cfg.Log.Format)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Metrics.Port = %d, want 9191", cfg.Metrics.Port)
	}
}

// TestLoadFromEnv verifies prefixed variables and the REDIS_URL / DATABASE_URL aliases.
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOVETREE_SERVER_HTTP_PORT", "9000")
	t.Setenv("LOVETREE_CACHE_OPERATION_TIMEOUT", "750ms")
	t.Setenv("REDIS_URL", "redis://cache.internal:6380/2")
	t.Setenv("DATABASE_URL", "postgres://u:p@db.internal:5432/lovetree")

	cfg, err := LoadFromEnv("LOVETREE")
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("Server.HTTPPort = %d, want 9000", cfg.Server.HTTPPort)
	}
	if cfg.Cache.OperationTimeout != 750*time.Millisecond {
		t.Errorf("Cache.OperationTimeout = %v, want 750ms", cfg.Cache.OperationTimeout)
	}
	if cfg.Cache.URL != "redis://cache.internal:6380/2" {
		t.Errorf("Cache.URL = %q", cfg.Cache.URL)
	}
	if cfg.Cache.Backend != CacheBackendRedis {
		t.Errorf("Cache.Backend = %q, want redis", cfg.Cache.Backend)
	}
	if cfg.Database.URL != "postgres://u:p@db.internal:5432/lovetree" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
}

func TestPrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://alias:6379/0")
	t.Setenv("LOVETREE_CACHE_URL", "redis://prefixed:6379/0")

	cfg, err := LoadFromEnv("LOVETREE")
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Cache.URL != "redis://prefixed:6379/0" {
		t.Errorf("Cache.URL = %q, want prefixed value", cfg.Cache.URL)
	}
}

// TestApplyDefaults verifies defaults for an empty configuration.
func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Service.Name != "lovetree" {
		t.Errorf("Service.Name = %q, want lovetree", cfg.Service.Name)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Server.HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Cache.Backend != CacheBackendNone {
		t.Errorf("Cache.Backend = %q, want none without an address", cfg.Cache.Backend)
	}
	if cfg.Cache.DefaultTTL != 30*time.Minute {
		t.Errorf("Cache.DefaultTTL = %v, want medium tier (30m)", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.OperationTimeout != 2*time.Second {
		t.Errorf("Cache.OperationTimeout = %v, want 2s", cfg.Cache.OperationTimeout)
	}
	if cfg.Cache.ReconnectMaxAttempts != 10 {
		t.Errorf("Cache.ReconnectMaxAttempts = %d, want 10", cfg.Cache.ReconnectMaxAttempts)
	}
	if cfg.Database.Enabled() {
		t.Error("Database.Enabled() = true for empty config")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if cfg.Metrics.Namespace != "lovetree" {
		t.Errorf("Metrics.Namespace = %q, want service name", cfg.Metrics.Namespace)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: "server.http_port",
		},
		{
			name:    "database host without user",
			mutate:  func(c *Config) { c.Database.Host = "db"; c.Database.Port = 5432; c.Database.Database = "x" },
			wantErr: "database.user",
		},
		{
			name:    "redis backend without address",
			mutate:  func(c *Config) { c.Cache.Backend = CacheBackendRedis },
			wantErr: "cache.url or cache.host",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "cache.backend",
		},
		{
			name:    "non-positive default ttl",
			mutate:  func(c *Config) { c.Cache.DefaultTTL = -time.Second },
			wantErr: "cache.default_ttl",
		},
		{
			name: "inverted backoff bounds",
			mutate: func(c *Config) {
				c.Cache.ReconnectInitialBackoff = 5 * time.Second
				c.Cache.ReconnectMaxBackoff = time.Second
			},
			wantErr: "reconnect_max_backoff",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Tracing.Enabled = true },
			wantErr: "tracing.endpoint",
		},
		{
			name:    "memory backend is valid",
			mutate:  func(c *Config) { c.Cache.Backend = CacheBackendMemory },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml", ""); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestMustLoadPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLoad() did not panic on missing file")
		}
	}()
	MustLoad("/does/not/exist.yaml", "")
}
