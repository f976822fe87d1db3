package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_ACCESS_SECRET", "access-from-env")

	yamlContent := `
auth:
  access_secret: "${TEST_ACCESS_SECRET}"
  refresh_secret: "refresh"
  access_ttl: 5m
database:
  path: "test.db"
booking:
  max_days_ahead: 30
services:
  - Plumbing
  - Cleaning
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "access-from-env", cfg.Auth.AccessSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 30, cfg.Booking.MaxDaysAhead)
	assert.Equal(t, []string{"Plumbing", "Cleaning"}, cfg.Services)
	assert.Equal(t, 5000, cfg.HTTP.Port)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Auth:     AuthConfig{AccessSecret: "a", RefreshSecret: "r"},
			Database: DatabaseConfig{Path: "path"},
			Services: []string{"Plumbing"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing access secret", mutate: func(c *Config) { c.Auth.AccessSecret = "" }, wantErr: true},
		{name: "same secrets", mutate: func(c *Config) { c.Auth.RefreshSecret = "a" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "mail without from", mutate: func(c *Config) { c.Mail.Host = "smtp.local" }, wantErr: true},
		{name: "duplicate service", mutate: func(c *Config) { c.Services = []string{"Plumbing", " plumbing"} }, wantErr: true},
		{name: "empty service", mutate: func(c *Config) { c.Services = []string{""} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()

	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 10, cfg.Auth.LoginAttempts)
	assert.Equal(t, 365, cfg.Booking.MaxDaysAhead)
	assert.Equal(t, 5, cfg.Notifications.MaxRetries)
	assert.Equal(t, "notifications:queue", cfg.Notifications.QueueKey)
	assert.Equal(t, 0.2, cfg.Notifications.RetryJitter)
	assert.Equal(t, time.Minute, cfg.Notifications.SendTimeout)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, 30*time.Second, cfg.Mail.Timeout)
}
