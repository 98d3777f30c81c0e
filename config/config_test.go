package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("VITE_DEEPSEEK_API_KEY", "vite-key")
	t.Setenv("STORE_BACKEND", "Memory")

	cfg := LoadConfig(logrus.New())

	assert.Equal(t, ":3000", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxImageBytes)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "vite-key", cfg.DeepseekAPIKey)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.UpstreamConfigured())
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreBackend:     BackendMemory,
		RetryMaxAttempts: 3,
		UpstreamTimeout:  time.Second,
		MaxImageBytes:    1,
	}
	require.NoError(t, base.Validate())

	pg := base
	pg.StoreBackend = BackendPostgres
	assert.Error(t, pg.Validate())
	pg.DatabaseURL = "postgres://localhost/triage"
	assert.NoError(t, pg.Validate())

	unknown := base
	unknown.StoreBackend = "redis"
	assert.Error(t, unknown.Validate())

	noRetry := base
	noRetry.RetryMaxAttempts = 0
	assert.Error(t, noRetry.Validate())
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://triage.local/api/")
	t.Setenv("TRIAGE_CONCURRENCY", "0")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://triage.local/api", cfg.APIBaseURL)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Empty(t, cfg.GrpcAddr)
}

func TestLoadClientConfig_BadDuration(t *testing.T) {
	t.Setenv("TRIAGE_TIMEOUT", "soon")
	_, err := LoadClientConfig()
	assert.Error(t, err)
}
