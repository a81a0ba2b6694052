package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_ProviderAPIKeys(t *testing.T) {
	t.Run("OPENAI_API_KEY sets openai provider key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "sk-test", cfg.Providers["openai"].APIKey)
	})

	t.Run("GEMINI_API_KEY sets nano provider key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gm-test")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gm-test", cfg.Providers["nano"].APIKey)
	})
}

func TestEnvOverrides_ProviderTuning(t *testing.T) {
	t.Setenv("LOOTFORGE_LOCAL_ENDPOINT", "http://example:9999")
	t.Setenv("LOOTFORGE_LOCAL_TIMEOUT_MS", "5000")
	t.Setenv("LOOTFORGE_LOCAL_MAX_RETRIES", "9")
	t.Setenv("LOOTFORGE_LOCAL_MIN_DELAY_MS", "250")
	t.Setenv("LOOTFORGE_LOCAL_DEFAULT_CONCURRENCY", "2")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	local := cfg.Providers["local"]
	assert.Equal(t, "http://example:9999", local.Endpoint)
	assert.Equal(t, 5000, local.TimeoutMs)
	assert.Equal(t, 9, local.MaxRetries)
	assert.Equal(t, 250, local.MinDelayMs)
	assert.Equal(t, 2, local.DefaultConcurrency)
}

func TestEnvOverrides_SoftMetricAdapterEnable(t *testing.T) {
	t.Setenv("LOOTFORGE_ENABLE_CLIP_ADAPTER", "true")
	t.Setenv("LOOTFORGE_ENABLE_CLIP_ADAPTER_CMD", "/usr/local/bin/clip-score")
	t.Setenv("LOOTFORGE_ENABLE_SSIM_ADAPTER_URL", "http://localhost:9100/score")
	t.Setenv("LOOTFORGE_ENABLE_SSIM_ADAPTER_TIMEOUT_MS", "1500")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.True(t, cfg.Adapters["clip"].Enabled)
	assert.Equal(t, "/usr/local/bin/clip-score", cfg.Adapters["clip"].Cmd)
	assert.False(t, cfg.Adapters["ssim"].Enabled)
	assert.Equal(t, "http://localhost:9100/score", cfg.Adapters["ssim"].URL)
	assert.Equal(t, 1500, cfg.Adapters["ssim"].TimeoutMs)
}

func TestEnvOverrides_Service(t *testing.T) {
	t.Setenv("LOOTFORGE_SERVICE_HOST", "0.0.0.0")
	t.Setenv("LOOTFORGE_SERVICE_PORT", "9000")
	t.Setenv("LOOTFORGE_SERVICE_OUT", "/tmp/lootforge-out")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "0.0.0.0", cfg.Service.Host)
	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, "/tmp/lootforge-out", cfg.Service.Out)
}

func TestLoad_MissingFileFallsBackToDefaultsPlusEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	cfg, err := Load("/nonexistent/lootforge.yaml")
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("sk-fallback", cfg.Providers["openai"].APIKey)
	assert.Equal("127.0.0.1", cfg.Service.Host)
}
