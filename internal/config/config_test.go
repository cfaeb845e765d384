package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() with a named missing file should fail")
	}

	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Engine.Workers)
	assert.Equal(t, 10.0, cfg.Engine.Rate)
	assert.Equal(t, 5, cfg.Engine.MaxAttempts)
	assert.Equal(t, "success", cfg.Engine.NotFound)
	assert.Equal(t, 15*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bulkcat.yaml")
	content := `
catalog:
  base_url: https://api.example.com/catalog
  auth_token: secret
  timeout: 30s
engine:
  workers: 12
  rate: 25
  not_found: skip
cache:
  enabled: true
  redis_addr: redis.internal:6379
logging:
  level: debug
  pretty: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/catalog", cfg.Catalog.BaseURL)
	assert.Equal(t, "secret", cfg.Catalog.AuthToken)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 12, cfg.Engine.Workers)
	assert.Equal(t, 25.0, cfg.Engine.Rate)
	assert.Equal(t, "skip", cfg.Engine.NotFound)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)

	// Unset fields keep their defaults.
	assert.Equal(t, 5, cfg.Engine.MaxAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BULKCAT_ENGINE_WORKERS", "20")
	t.Setenv("BULKCAT_CATALOG_BASE_URL", "https://env.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Engine.Workers)
	assert.Equal(t, "https://env.example.com", cfg.Catalog.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Engine.Workers = 0 },
			wantErr: "engine.workers",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Engine.Rate = -1 },
			wantErr: "engine.rate",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Engine.MaxAttempts = 0 },
			wantErr: "engine.max_attempts",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Catalog.Timeout = 0 },
			wantErr: "catalog.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
