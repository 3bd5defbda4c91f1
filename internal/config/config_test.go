package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Auth.RequireSignature, "unsigned mode must be an explicit opt-in")
	assert.Equal(t, 300, cfg.Auth.MaxClockSkewSeconds)
	assert.Equal(t, "arena:trades", cfg.Redis.TradeListKey)
	assert.Equal(t, 10000, cfg.Redis.TradeListMax)
	assert.Equal(t, "11111111111111111111111111111112", cfg.Vault.ProgramID)
	assert.Zero(t, cfg.Vault.MinReserve)
	assert.Equal(t, 10.0, cfg.RateLimit.QPS)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("ARENA_SERVER_PORT", "9090")
	t.Setenv("ARENA_AUTH_ADMIN_KEY", "root")
	t.Setenv("ARENA_VAULT_MIN_RESERVE", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "root", cfg.Auth.AdminKey)
	assert.Equal(t, uint64(5000), cfg.Vault.MinReserve)
}
