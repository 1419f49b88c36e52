package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefixer/internal/types"
)

func TestEnvOverrides_Roles(t *testing.T) {
	t.Run("URL/KEY/MODEL enable a chat role", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("AI_PROVIDER_GENERATE_URL", "https://openrouter.example/api/v1")
		t.Setenv("AI_PROVIDER_GENERATE_KEY", "or-key")
		t.Setenv("AI_PROVIDER_GENERATE_MODEL", "deepseek/deepseek-chat")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, "https://openrouter.example/api/v1", cfg.Providers.Generate.URL)
		assert.Equal(t, "or-key", cfg.Providers.Generate.APIKey)
		assert.Equal(t, "deepseek/deepseek-chat", cfg.Providers.Generate.Model)
		assert.Equal(t, []types.Role{types.RoleGenerate}, cfg.Providers.Enabled())
	})

	t.Run("absence disables every role", func(t *testing.T) {
		clearProviderEnv(t)

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Empty(t, cfg.Providers.Enabled())
	})

	t.Run("all four roles", func(t *testing.T) {
		clearProviderEnv(t)
		for _, role := range types.Roles {
			t.Setenv(EnvPrefix(role)+"_URL", "http://"+string(role))
		}

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, types.Roles, cfg.Providers.Enabled())
	})

	t.Run("KIND and COMMAND select a command adapter", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("AI_PROVIDER_FALLBACK_KIND", "COMMAND")
		t.Setenv("AI_PROVIDER_FALLBACK_COMMAND", "gemini -p")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, KindCommand, cfg.Providers.Fallback.EffectiveKind())
		assert.True(t, cfg.Providers.Fallback.Enabled())
	})

	t.Run("TIMEOUT and RPS", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("AI_PROVIDER_VALIDATE_TIMEOUT", "5s")
		t.Setenv("AI_PROVIDER_VALIDATE_RPS", "0.5")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "5s", cfg.Providers.Validate.Timeout)
		assert.InDelta(t, 0.5, cfg.Providers.Validate.RPS, 1e-9)
	})

	t.Run("malformed RPS is a config error", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("AI_PROVIDER_PREPARE_RPS", "fast")

		cfg := DefaultConfig()
		err := cfg.applyEnvOverrides()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AI_PROVIDER_PREPARE_RPS")
	})

	t.Run("env wins over file", func(t *testing.T) {
		clearProviderEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("providers:\n  prepare:\n    url: http://file\n"), 0644))
		t.Setenv("AI_PROVIDER_PREPARE_URL", "http://env")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://env", cfg.Providers.Prepare.URL)
	})
}

func TestLoadEnvFile(t *testing.T) {
	clearProviderEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AI_PROVIDER_VALIDATE_URL=http://from-dotenv\n"), 0644))
	// godotenv.Load does not override variables that are already set, and an
	// empty value counts as set, so remove it for this test.
	require.NoError(t, os.Unsetenv("AI_PROVIDER_VALIDATE_URL"))
	t.Cleanup(func() { os.Unsetenv("AI_PROVIDER_VALIDATE_URL") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "http://from-dotenv", os.Getenv("AI_PROVIDER_VALIDATE_URL"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
