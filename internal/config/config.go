// Package config resolves settings from flags, SLDPREVIEW_* environment
// variables, an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix starts every environment variable viper reads.
const EnvPrefix = "SLDPREVIEW"

// Keys shared by flags, environment and config file.
const (
	KeyDataDir         = "data_dir"
	KeyLogLevel        = "log_level"
	KeyLogPretty       = "log_pretty"
	KeyRefreshSchedule = "refresh_schedule"
	KeySecretBackend   = "secret_backend"
	KeyWatch           = "watch"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
}

var validSecretBackends = map[string]bool{"keychain": true, "env": true}

type Config struct {
	DataDir         string
	LogLevel        string
	LogPretty       bool
	RefreshSchedule string // cron expression; empty disables scheduled refresh
	SecretBackend   string
	Watch           bool // reload the document when its file changes
}

// DBPath is the application database inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "sldpreview.db")
}

// DefaultDataDir is ~/.local/share/sldpreview.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sldpreview"
	}
	return filepath.Join(home, ".local", "share", "sldpreview")
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, DefaultDataDir())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogPretty, true)
	v.SetDefault(KeyRefreshSchedule, "")
	v.SetDefault(KeySecretBackend, "keychain")
	v.SetDefault(KeyWatch, true)
}

// Load reads .env from the working directory when present, then resolves
// the configuration from v. configFile may be empty.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := Config{
		DataDir:         v.GetString(KeyDataDir),
		LogLevel:        strings.ToLower(v.GetString(KeyLogLevel)),
		LogPretty:       v.GetBool(KeyLogPretty),
		RefreshSchedule: strings.TrimSpace(v.GetString(KeyRefreshSchedule)),
		SecretBackend:   strings.ToLower(v.GetString(KeySecretBackend)),
		Watch:           v.GetBool(KeyWatch),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is empty")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if !validSecretBackends[c.SecretBackend] {
		return fmt.Errorf("invalid secret backend %q", c.SecretBackend)
	}
	if c.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", c.RefreshSchedule, err)
		}
	}
	return nil
}
