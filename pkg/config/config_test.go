package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 60*time.Second, cfg.PipelineMaxDuration)
	assert.Equal(t, 5, cfg.RateLimitCapacity)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("PIPELINE_MAX_DURATION_SECONDS", "30")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT_CAPACITY", "not-a-number")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsStaging)
	assert.Equal(t, 30*time.Second, cfg.PipelineMaxDuration)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5, cfg.RateLimitCapacity)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("unknown env", func(t *testing.T) {
		t.Setenv("APP_ENV", "qa")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production without secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET_KEY", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET_KEY")
	})

	t.Run("mongo without uri", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("MONGODB_URI", "")
		_, err := Load()
		assert.ErrorContains(t, err, "MONGODB_URI")
	})
}
