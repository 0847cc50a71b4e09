package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 6, cfg.Auth.OTP.Digits)
	require.Equal(t, 10*time.Minute, cfg.Auth.OTP.Expiry)
	require.Equal(t, "https://accounts.google.com", cfg.Auth.Federated.Issuer)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9001
  log_level: debug
auth:
  jwt:
    secret: test-secret
    token_ttl: 1h
  otp:
    digits: 8
    expiry: 5m
database:
  driver: sqlite
  path: /tmp/test.sqlite
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "test-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 8, cfg.Auth.OTP.Digits)
	require.Equal(t, 5*time.Minute, cfg.Auth.OTP.Expiry)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("AGRIGPT_SERVER_PORT", "9100")
	t.Setenv("AGRIGPT_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}

func TestDatabaseSettingsPostgres(t *testing.T) {
	dbCfg := DatabaseConfig{
		Driver: "postgresql",
		Postgres: DBAuthConfig{
			Host:     "db.internal",
			Port:     5433,
			Database: "agrigpt",
			Username: "svc",
			Password: "pw",
		},
	}

	settings := dbCfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5433, settings.Port)
	require.Equal(t, "agrigpt", settings.Name)
}
