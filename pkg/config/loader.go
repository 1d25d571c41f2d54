package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// envAliases maps conventional platform variables onto config keys. They are consulted
// after the prefixed variable, so LOVETREE_CACHE_URL wins over REDIS_URL.
var envAliases = map[string]string{
	"cache.url":    "REDIS_URL",
	"database.url": "DATABASE_URL",
}

// Load reads configuration from configPath (optional) and the environment.
// envPrefix namespaces variables: "LOVETREE" -> LOVETREE_CACHE_HOST.
func Load(configPath, envPrefix string) (*Config, error) {
	v := viper.New()

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every field is bound explicitly.
	if err := bindEnv(v, envPrefix, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnv walks the mapstructure tags of t and binds each leaf key to its environment
// variable (plus any alias).
func bindEnv(v *viper.Viper, envPrefix string, t reflect.Type, parent string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if parent != "" {
			key = parent + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			if err := bindEnv(v, envPrefix, field.Type, key); err != nil {
				return err
			}
			continue
		}

		names := []string{envName(envPrefix, key)}
		if alias, ok := envAliases[key]; ok {
			names = append(names, alias)
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return err
		}
	}
	return nil
}

func envName(prefix, key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if prefix == "" {
		return name
	}
	return strings.ToUpper(prefix) + "_" + name
}

// MustLoad is Load that panics, for use in main.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv(envPrefix string) (*Config, error) {
	return Load("", envPrefix)
}

// MustLoadFromEnv is LoadFromEnv that panics.
func MustLoadFromEnv(envPrefix string) *Config {
	return MustLoad("", envPrefix)
}
