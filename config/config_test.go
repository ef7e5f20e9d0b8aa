package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("AUTH_JWT_SECRET", strings.Repeat("x", MinJWTSecretLength))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.UsePostgres())
	assert.False(t, cfg.UseRedis())
	assert.False(t, cfg.UseFaceService())
	assert.Equal(t, 1, cfg.Face.MaxAttempts)
	assert.Equal(t, 1.0, cfg.Face.AttendanceIncrement)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Features.IsEnabled(FeatureFaceAttendance))
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ResyncInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("REDIS_DISABLED", "false")
	t.Setenv("FACE_SERVICE_URL", "http://face:5000/")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.edu, https://b.edu,")
	t.Setenv("FEATURE_ASSISTANT_CHAT", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://app:pw@db.internal:5432/postgres?sslmode=require", cfg.Database.URL)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, "http://face:5000", cfg.Face.ServiceURL)
	assert.Equal(t, []string{"https://a.edu", "https://b.edu"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.Features.IsEnabled(FeatureAssistant))
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=9191\n"), 0o600))

	t.Setenv("APP_ENV_FILE", path)
	t.Setenv("AUTH_JWT_SECRET", strings.Repeat("x", MinJWTSecretLength))
	t.Setenv("HTTP_PORT", "")
	require.NoError(t, os.Unsetenv("HTTP_PORT"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.HTTP.Port)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_JWT_SECRET", "short")
	t.Setenv("APP_ENV", "production")
	t.Setenv("FACE_MAX_ATTEMPTS", "0")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("SCHEDULER_RESYNC_INTERVAL", "10ms")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"AUTH_JWT_SECRET", "DATABASE_URL", "FACE_MAX_ATTEMPTS", "LOG_FORMAT", "SCHEDULER_"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestFeatureFlags(t *testing.T) {
	ff := NewFeatureFlags()

	assert.True(t, ff.EnabledFor(FeatureRosterImport, "u1", "teacher"))
	assert.False(t, ff.EnabledFor(FeatureRosterImport, "u1", "student"))
	assert.False(t, ff.EnabledFor("unknown", "u1", "admin"))

	require.NoError(t, ff.DisableFeature(FeatureAssistant))
	assert.False(t, ff.IsEnabled(FeatureAssistant))
	assert.False(t, ff.EnabledFor(FeatureAssistant, "u1", "student"))

	ff.SetUserOverride("u1", FeatureAssistant, true)
	assert.True(t, ff.EnabledFor(FeatureAssistant, "u1", "student"))
	ff.ClearUserOverrides("u1")
	assert.False(t, ff.EnabledFor(FeatureAssistant, "u1", "student"))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureAssistant, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("unknown", 50), ErrFeatureNotFound)
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureFaceAttendance, 50))

	enabled := 0
	for i := 0; i < 200; i++ {
		id := "user-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		first := ff.EnabledFor(FeatureFaceAttendance, id, "student")
		assert.Equal(t, first, ff.EnabledFor(FeatureFaceAttendance, id, "student"))
		if first {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 200)
}
