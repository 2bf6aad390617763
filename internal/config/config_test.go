package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "keychain", cfg.SecretBackend)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.Equal(t, filepath.Join(cfg.DataDir, "sldpreview.db"), cfg.DBPath())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SLDPREVIEW_LOG_LEVEL", "DEBUG")
	t.Setenv("SLDPREVIEW_SECRET_BACKEND", "env")
	t.Setenv("SLDPREVIEW_REFRESH_SCHEDULE", "*/5 * * * *")

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "env", cfg.SecretBackend)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshSchedule)
}

func TestLoad_DotEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SLDPREVIEW_DATA_DIR", "")
	os.Unsetenv("SLDPREVIEW_DATA_DIR")
	t.Cleanup(func() { os.Unsetenv("SLDPREVIEW_DATA_DIR") })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SLDPREVIEW_DATA_DIR=/srv/preview\n"), 0644))
	cfgFile := filepath.Join(dir, "sldpreview.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("log_pretty: false\nwatch: false\n"), 0644))

	cfg, err := config.Load(viper.New(), cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "/srv/preview", cfg.DataDir)
	assert.False(t, cfg.LogPretty)
	assert.False(t, cfg.Watch)
}

func TestValidate(t *testing.T) {
	base := config.Config{DataDir: "/tmp/x", LogLevel: "info", SecretBackend: "env"}
	require.NoError(t, base.Validate())

	bad := base
	bad.LogLevel = "loud"
	assert.Error(t, bad.Validate())

	bad = base
	bad.SecretBackend = "vault"
	assert.Error(t, bad.Validate())

	bad = base
	bad.RefreshSchedule = "every tuesday"
	assert.Error(t, bad.Validate())
}
