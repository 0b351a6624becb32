// Package config loads the flatfs configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete flatfs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FLATFS_*, plus PUID/PGID for the owner)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Mount controls how and where the filesystem is mounted
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// Owner is reported as the owner of nodes when no requester is known
	Owner OwnerConfig `mapstructure:"owner" yaml:"owner"`

	// Engine tunes the in-memory state engine
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Session configures the registry of live mounts
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Valid values: ERROR, WARN, INFO, DEBUG, TRACE (case-insensitive)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=ERROR WARN INFO DEBUG TRACE"`

	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MountConfig controls the FUSE mount.
type MountConfig struct {
	Point            string        `mapstructure:"point" yaml:"point" validate:"required"`
	FSName           string        `mapstructure:"fs_name" yaml:"fs_name" validate:"required,excludesall=/ "`
	AllowOther       bool          `mapstructure:"allow_other" yaml:"allow_other"`
	ReadOnly         bool          `mapstructure:"read_only" yaml:"read_only"`
	CreateMountPoint bool          `mapstructure:"create_mount_point" yaml:"create_mount_point"`
	ReadyTimeout     time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout" validate:"gt=0"`
}

// OwnerConfig sets the uid/gid reported when the kernel does not say who
// is asking.
type OwnerConfig struct {
	UID uint32 `mapstructure:"uid" yaml:"uid"`
	GID uint32 `mapstructure:"gid" yaml:"gid"`
}

// EngineConfig tunes the state engine.
type EngineConfig struct {
	// DuplicateNames decides what create does with a name already in use
	DuplicateNames string `mapstructure:"duplicate_names" yaml:"duplicate_names" validate:"required,oneof=reject replace"`

	// WriteMode is "offset" (writes land at their offset) or "append"
	WriteMode string `mapstructure:"write_mode" yaml:"write_mode" validate:"required,oneof=offset append"`

	// ReaddirBatch is how many entries the adapter takes per engine call
	ReaddirBatch int `mapstructure:"readdir_batch" yaml:"readdir_batch" validate:"gt=0,lte=4096"`

	EntryTTL time.Duration `mapstructure:"entry_ttl" yaml:"entry_ttl" validate:"gt=0"`
	AttrTTL  time.Duration `mapstructure:"attr_ttl" yaml:"attr_ttl" validate:"gt=0"`
}

// SessionConfig configures the live-mount registry.
type SessionConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" validate:"required"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case the default location is searched
// and a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FLATFS_MOUNT_POINT=/mnt/flat
	v.SetEnvPrefix("FLATFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// PUID/PGID are honoured for containers that set them
	_ = v.BindEnv("owner.uid", "FLATFS_OWNER_UID", "PUID")
	_ = v.BindEnv("owner.gid", "FLATFS_OWNER_GID", "PGID")

	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/flatfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if configPath == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flatfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "flatfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
