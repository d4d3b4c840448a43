package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.Screening.PollInterval)
	assert.Equal(t, 144, cfg.Screening.MaxAttempts)
	assert.Equal(t, 1024, cfg.Screening.AuditBufferSize)
	assert.Equal(t, 10, cfg.Screening.SubmitRateLimit)
	assert.Equal(t, time.Minute, cfg.Screening.SubmitRateWindow)
	assert.Equal(t, "screening.notices.pre_adverse", cfg.Kafka.NoticeTopic)
	assert.True(t, cfg.DB.MigrateOnStart)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BASECAMP_ENV", "staging")
	t.Setenv("SCREENING_POLL_INTERVAL", "5s")
	t.Setenv("SCREENING_MAX_ATTEMPTS", "12")
	t.Setenv("SCREENING_PROVIDER", "sterling")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, 5*time.Second, cfg.Screening.PollInterval)
	assert.Equal(t, 12, cfg.Screening.MaxAttempts)
	assert.Equal(t, "sterling", cfg.Screening.Provider)
}

func TestFromEnvReportsMalformedValues(t *testing.T) {
	t.Setenv("SCREENING_POLL_INTERVAL", "soon")
	t.Setenv("SCREENING_MAX_ATTEMPTS", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCREENING_POLL_INTERVAL")
	assert.Contains(t, err.Error(), "SCREENING_MAX_ATTEMPTS")
}

func TestValidateProduction(t *testing.T) {
	t.Setenv("BASECAMP_ENV", "production")
	t.Setenv("SCREENING_PROVIDER", "fake")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_JWT_SECRET")
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "fake screening provider")
}

func TestValidateRejectsNonPositiveBudget(t *testing.T) {
	t.Setenv("SCREENING_MAX_ATTEMPTS", "0")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestValidateLockOutlivesVendorCalls(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_LOCK_TTL", "5s")
	t.Setenv("STERLING_TIMEOUT", "5s")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_LOCK_TTL")
	assert.Contains(t, err.Error(), "CHECKR_TIMEOUT")
	assert.Contains(t, err.Error(), "STERLING_TIMEOUT")
}
