package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMountPoint   = "/tmp/flatfs"
	DefaultFSName       = "flatfs"
	DefaultReadyTimeout = 3 * time.Second
	DefaultReaddirBatch = 64
	DefaultTTL          = time.Second
)

// setViperDefaults registers every key so AutomaticEnv can see it during
// Unmarshal. Keys whose zero value is meaningful get their real default here;
// the rest are filled in by ApplyDefaults.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("mount.point", DefaultMountPoint)
	v.SetDefault("mount.fs_name", DefaultFSName)
	v.SetDefault("mount.allow_other", true)
	v.SetDefault("mount.read_only", false)
	v.SetDefault("mount.create_mount_point", true)
	v.SetDefault("mount.ready_timeout", DefaultReadyTimeout)

	v.SetDefault("owner.uid", currentUID())
	v.SetDefault("owner.gid", currentGID())

	v.SetDefault("engine.duplicate_names", "reject")
	v.SetDefault("engine.write_mode", "offset")
	v.SetDefault("engine.readdir_batch", DefaultReaddirBatch)
	v.SetDefault("engine.entry_ttl", DefaultTTL)
	v.SetDefault("engine.attr_ttl", DefaultTTL)

	v.SetDefault("session.dir", "")
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMountDefaults(&cfg.Mount)
	applyEngineDefaults(&cfg.Engine)
	applySessionDefaults(&cfg.Session)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMountDefaults(cfg *MountConfig) {
	if cfg.Point == "" {
		cfg.Point = DefaultMountPoint
	}
	cfg.Point = filepath.Clean(cfg.Point)

	if cfg.FSName == "" {
		cfg.FSName = DefaultFSName
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.DuplicateNames == "" {
		cfg.DuplicateNames = "reject"
	}
	cfg.DuplicateNames = strings.ToLower(cfg.DuplicateNames)

	if cfg.WriteMode == "" {
		cfg.WriteMode = "offset"
	}
	cfg.WriteMode = strings.ToLower(cfg.WriteMode)

	if cfg.ReaddirBatch == 0 {
		cfg.ReaddirBatch = DefaultReaddirBatch
	}
	if cfg.EntryTTL == 0 {
		cfg.EntryTTL = DefaultTTL
	}
	if cfg.AttrTTL == 0 {
		cfg.AttrTTL = DefaultTTL
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "flatfs-sessions")
	}
}

func currentUID() uint32 {
	uid := os.Getuid()
	if uid < 0 {
		return 0
	}
	return uint32(uid)
}

func currentGID() uint32 {
	gid := os.Getgid()
	if gid < 0 {
		return 0
	}
	return uint32(gid)
}
