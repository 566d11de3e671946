package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty directory so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, envs := range envBindings {
		for _, name := range envs {
			t.Setenv(name, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./dev.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "resend", cfg.Email.Provider)
	assert.Equal(t, defaultEmailFrom, cfg.Email.From)
	assert.Equal(t, time.Hour, cfg.Reviews.CacheTTL)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Email.NotifyTo)
	assert.False(t, cfg.Reviews.Configured())
}

func TestLoadEnvOverridesAndLists(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)

	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("NOTIFY_EMAILS", "office@example.com, estimates@example.com ,")
	t.Setenv("CONTACT_NOTIFY_EMAILS", "front@example.com")
	t.Setenv("NOTIFY_BCC", "audit@example.com")
	t.Setenv("REVIEWS_CACHE_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "re_test", cfg.Email.APIKey)
	assert.Equal(t, []string{"office@example.com", "estimates@example.com"}, cfg.Email.NotifyTo)
	assert.Equal(t, []string{"office@example.com", "estimates@example.com"}, cfg.Email.EstimateRecipients())
	assert.Equal(t, []string{"front@example.com"}, cfg.Email.ContactRecipients())
	assert.Equal(t, []string{"audit@example.com"}, cfg.Email.BCC)
	assert.Equal(t, 15*time.Minute, cfg.Reviews.CacheTTL)
}

func TestLoadFromYAMLAndDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	clearEnv(t)

	yaml := `
site_name: Ridgeline Builders
log:
  level: debug
  format: console
email:
  notify_to:
    - office@example.com
    - owner@example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOOGLE_CLIENT_ID=client-from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Ridgeline Builders", cfg.SiteName)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"office@example.com", "owner@example.com"}, cfg.Email.NotifyTo)
	assert.Equal(t, "client-from-dotenv", cfg.Reviews.ClientID)
}

func TestInitLogger(t *testing.T) {
	logger, err := InitLogger(LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = InitLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
