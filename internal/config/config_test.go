package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlytics/go-auth-client/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, ".eventlytics/tokens.json", cfg.Store.TokenFile)
	assert.Empty(t, cfg.Store.RedisAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AUTHCLIENT_API_BASE_URL", "https://analytics.example.com")
	t.Setenv("AUTHCLIENT_API_TIMEOUT", "30s")
	t.Setenv("AUTHCLIENT_STORE_REDIS_ADDR", "localhost:6379")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://analytics.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
}
