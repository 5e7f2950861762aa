package config_test

import (
	"testing"
	"time"

	"github.com/netvista/portal-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.False(t, cfg.IsProduction())
	require.NotEmpty(t, cfg.TokenSecret) // dev fallback
	require.Equal(t, 10*time.Minute, cfg.SweepInterval())
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)

	t.Setenv("TOKEN_SECRET", "real-secret")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
}

func TestConfig_Origins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://portal.example.com, https://admin.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://portal.example.com", "https://admin.example.com"}, cfg.Origins())
}

func TestLoad_BadSweepInterval(t *testing.T) {
	t.Setenv("SESSION_SWEEP_INTERVAL", "often")

	_, err := config.Load()
	require.Error(t, err)
}
