package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/trialbridge_test")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.AppEnv)
	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 10, cfg.ReportFlagThreshold)
	assert.Equal(t, 30*time.Second, cfg.AlertPollInterval)
	assert.Equal(t, time.Hour, cfg.ResetTokenLifetime)
}

func TestLoadMissingDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "test-secret")
	require.NoError(t, os.Unsetenv("POSTGRES_DSN"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroThreshold(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/trialbridge_test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REPORT_FLAG_THRESHOLD", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestJWTLifetime(t *testing.T) {
	tests := []struct {
		name string
		ttl  string
		want time.Duration
	}{
		{name: "valid", ttl: "15m", want: 15 * time.Minute},
		{name: "malformed falls back", ttl: "soon", want: time.Hour},
		{name: "negative falls back", ttl: "-5m", want: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{JWTTTL: tt.ttl}
			assert.Equal(t, tt.want, cfg.JWTLifetime())
		})
	}
}
