package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvRequiresAPIBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	cfg, err := FromEnv()
	require.ErrorIs(t, err, ErrMissingAPIBaseURL)
	require.Nil(t, cfg)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.sacco.test/api/")
	t.Setenv("APP_MODE", "dev")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "https://api.sacco.test/api", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.Equal(t, 30*time.Second, cfg.Session.NotificationInterval)
	require.Equal(t, []string{"/dashboard"}, cfg.Access.ProtectedPrefixes)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.NotEmpty(t, cfg.Session.Secret)
}

func TestFromEnvProdNeedsSecret(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.sacco.test")
	t.Setenv("APP_MODE", "prod")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("PROD_SESSION_SECRET", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvProtectedPrefixes(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.sacco.test")
	t.Setenv("PROTECTED_PREFIXES", " /dashboard, /reports ,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, []string{"/dashboard", "/reports"}, cfg.Access.ProtectedPrefixes)
}

func TestDatabaseSettings(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.sacco.test")
	t.Setenv("APP_MODE", "dev")
	t.Setenv("DEV_DB_PORT", "3306")
	t.Setenv("DEV_DB_NAME", "sacco_console")
	t.Setenv("DEV_DB_HOST", "db.internal")
	t.Setenv("DEV_DB_USER", "console")
	t.Setenv("DEV_DB_PASS", "pw")
	t.Setenv("DB_MAX_OPEN_CONNS", "40")
	t.Setenv("DB_MAX_IDLE_CONNS", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 40, cfg.Database.MaxOpenConns)
	require.Equal(t, 5, cfg.Database.MaxIdleConns)
	require.Equal(t, "console:pw@tcp(db.internal:3306)/sacco_console?charset=utf8mb4&parseTime=True&loc=UTC", cfg.Database.DSN())
}
