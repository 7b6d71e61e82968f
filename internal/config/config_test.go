package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	// keep Load from picking up a developer .env
	t.Setenv("ENV_FILE_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("ADMIN_TOTP_SECRET", "JBSWY3DPEHPK3PXP")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "sqlite:data.db", cfg.DatabaseURL)
	require.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
	require.Equal(t, "@every 10s", cfg.SettingsScheduleSpec)
	require.True(t, cfg.PayoutAmount.IsZero())
	require.Equal(t, "Africa/Nairobi", cfg.Location.String())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URL", "postgres://chama@localhost/chama")
	t.Setenv("SETTINGS_CACHE_TTL", "5")
	t.Setenv("RAFFLE_PAYOUT_AMOUNT", "12500.50")
	t.Setenv("RAFFLE_TIMEZONE", "UTC")
	t.Setenv("ADMIN_ALLOWED_IPS", "10.0.0.1, ,192.168.1.0/24")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://chama@localhost/chama", cfg.DatabaseURL)
	require.Equal(t, 5*time.Second, cfg.SettingsCacheTTL)
	require.Equal(t, "12500.5", cfg.PayoutAmount.String())
	require.Equal(t, time.UTC, cfg.Location)
	require.Equal(t, []string{"10.0.0.1", "192.168.1.0/24"}, cfg.AdminAllowedIPs)
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("RAFFLE_PAYOUT_AMOUNT", "-1")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("RAFFLE_PAYOUT_AMOUNT", "100")
	t.Setenv("RAFFLE_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadReadsEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=9191\n"), 0o600))
	t.Setenv("ENV_FILE_PATH", path)
	t.Setenv("HTTP_PORT", "")
	os.Unsetenv("HTTP_PORT")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9191", cfg.HTTPPort)
	require.Equal(t, path, cfg.EnvFilePath)
}
