package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefixer/internal/config"
	"linefixer/internal/provider"
	"linefixer/internal/types"
)

func TestBuildRoster(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Generate.URL = "http://127.0.0.1:1/v1"
	cfg.Providers.Generate.Timeout = "5s"
	cfg.Providers.Fallback.Kind = config.KindCommand
	cfg.Providers.Fallback.Command = "cat"
	cfg.Providers.Validate.Kind = config.KindGemini
	cfg.Providers.Validate.APIKey = "test-key"

	roster, err := provider.BuildRoster(context.Background(), cfg, provider.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []types.Role{types.RoleGenerate, types.RoleValidate, types.RoleFallback}, roster.Roles())
	assert.False(t, roster.Has(types.RolePrepare))
	assert.Nil(t, roster.Get(types.RolePrepare))

	gen := roster.Get(types.RoleGenerate)
	require.NotNil(t, gen)
	assert.Equal(t, "generate", gen.ID())
	assert.Equal(t, 5*time.Second, gen.Defaults.Timeout)
	assert.InDelta(t, 0.1, gen.Defaults.Temperature, 1e-9)
	assert.Equal(t, 1024, gen.Defaults.MaxOutput)

	assert.Equal(t, "fallback", roster.Get(types.RoleFallback).ID())
	assert.Equal(t, "validate", roster.Get(types.RoleValidate).ID())
}

func TestBuildRoster_NothingConfigured(t *testing.T) {
	roster, err := provider.BuildRoster(context.Background(), config.DefaultConfig(), provider.BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, roster.Roles())

	var nilRoster provider.Roster
	assert.Nil(t, nilRoster.Get(types.RoleGenerate))
}

func TestNewAdapter_UnknownKind(t *testing.T) {
	_, err := provider.NewAdapter(context.Background(), "generate", &config.ProviderConfig{Kind: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestBuildRoster_RoleDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Prepare.Kind = config.KindCommand
	cfg.Providers.Prepare.Command = "cat"

	roster, err := provider.BuildRoster(context.Background(), cfg, provider.BuildOptions{})
	require.NoError(t, err)
	prep := roster.Get(types.RolePrepare)
	require.NotNil(t, prep)
	assert.Equal(t, types.RolePrepare, prep.Role)
	assert.InDelta(t, 0.2, prep.Defaults.Temperature, 1e-9)
	assert.Equal(t, 512, prep.Defaults.MaxOutput)
}
