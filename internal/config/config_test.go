package config

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) uuid.UUID {
	t.Helper()
	serverID := uuid.New()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/lexisync")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SERVER_ID", serverID.String())
	return serverID
}

func TestLoadConfig_Defaults(t *testing.T) {
	serverID := setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, serverID, cfg.ServerID)
	assert.Equal(t, "24h0m0s", cfg.SessionTTL.String())
	assert.Equal(t, "5s", cfg.AssertionLeeway.String())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100, cfg.RateLimitRPS)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("ASSERTION_LEEWAY", "10s")
	t.Setenv("RATE_LIMIT_RPS", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "30m0s", cfg.SessionTTL.String())
	assert.Equal(t, "10s", cfg.AssertionLeeway.String())
	assert.Equal(t, 5, cfg.RateLimitRPS)
}

func TestLoadConfig_MissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidServerID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_ID", "not-a-uuid")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidSessionTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_TTL", "yesterday")

	_, err := LoadConfig()
	assert.Error(t, err)
}
