package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StoreConfig selects where tokens are persisted. When RedisAddr is set the
// Redis store is used, otherwise tokens go to TokenFile.
type StoreConfig struct {
	TokenFile     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Config is the full client configuration.
type Config struct {
	Environment string
	API         APIConfig
	Store       StoreConfig
}

// Load reads configuration from the environment with sensible development
// defaults. Every key can be set as an env var with the AUTHCLIENT_ prefix,
// e.g. AUTHCLIENT_API_BASE_URL.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTHCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", "development")
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("store.token_file", ".eventlytics/tokens.json")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "authclient:")

	cfg := &Config{
		Environment: v.GetString("environment"),
		API: APIConfig{
			BaseURL: v.GetString("api.base_url"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Store: StoreConfig{
			TokenFile:     v.GetString("store.token_file"),
			RedisAddr:     v.GetString("store.redis_addr"),
			RedisPassword: v.GetString("store.redis_password"),
			RedisDB:       v.GetInt("store.redis_db"),
			RedisPrefix:   v.GetString("store.redis_prefix"),
		},
	}

	if cfg.API.BaseURL == "" {
		return nil, errors.New("[config.Load] api.base_url must not be empty")
	}
	if cfg.API.Timeout <= 0 {
		return nil, errors.New("[config.Load] api.timeout must be positive")
	}
	return cfg, nil
}
