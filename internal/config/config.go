// Package config loads and validates the capture service configuration
// from a YAML file and CATSCAN_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoggerConfig controls structured log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// CaptureConfig bounds what gets recorded and where it lands.
type CaptureConfig struct {
	// GuildID is the only guild whose messages are captured.
	GuildID string `mapstructure:"guild_id" validate:"required"`
	// DataDir is the partition root directory, created on demand.
	DataDir string `mapstructure:"data_dir" validate:"required"`
	// FirstYear is the first calendar year capture supports.
	FirstYear int `mapstructure:"first_year" validate:"required,min=2000"`
	// CutoffMonth and CutoffDay fix the end-of-capture instant within each
	// year (23:59:59 UTC on that date).
	CutoffMonth int `mapstructure:"cutoff_month" validate:"min=1,max=12"`
	CutoffDay   int `mapstructure:"cutoff_day"   validate:"min=1,max=31"`
	// CommitEvery is the backfill batch size between durability flushes.
	CommitEvery int `mapstructure:"commit_every" validate:"min=1"`

	// IgnoredChannels and IgnoredCategories are never captured. Fixed at
	// startup.
	IgnoredChannels   []string `mapstructure:"ignored_channels"`
	IgnoredCategories []string `mapstructure:"ignored_categories"`
}

// ReplayConfig points the service at an archived JSONL export in place of a
// live platform connection.
type ReplayConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// MaintenanceConfig schedules partition upkeep.
type MaintenanceConfig struct {
	// Schedule is a cron expression; empty disables the task.
	Schedule string `mapstructure:"schedule"`
}

// Config is the full service configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Replay      ReplayConfig      `mapstructure:"replay"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// LoadConfig reads configuration from the given YAML file, overlays
// CATSCAN_* environment variables and validates the result. A missing
// config file is allowed; defaults and environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CATSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !isNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// isNotExist matches both viper's own not-found error and the plain path
// error produced when SetConfigFile points at a missing file.
func isNotExist(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	// Empty defaults register the keys so environment-only values survive
	// Unmarshal; validation rejects them when they stay empty.
	v.SetDefault("capture.guild_id", "")
	v.SetDefault("replay.dir", "")

	v.SetDefault("capture.data_dir", "data/cat_scan")
	v.SetDefault("capture.first_year", 2025)
	v.SetDefault("capture.cutoff_month", 12)
	v.SetDefault("capture.cutoff_day", 15)
	v.SetDefault("capture.commit_every", 512)

	v.SetDefault("maintenance.schedule", "0 5 * * *")
}
