package commands

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"flatfs/internal/config"
	"flatfs/internal/engine"
	"flatfs/internal/fs"
	"flatfs/internal/logging"
	"flatfs/internal/session"
)

var mountCmd = &cobra.Command{
	Use:   "mount [mount-point]",
	Short: "Mount an empty in-memory filesystem",
	Long: `Mounts a new, empty flatfs filesystem and serves it until interrupted.

The mount point defaults to mount.point from the configuration. It is
created if missing. SIGINT or SIGTERM unmounts the filesystem and exits.

Examples:
  flatfs mount /tmp/flatfs
  flatfs mount /mnt/scratch -o ro,fsname=scratch
  flatfs mount -c ./flatfs.yaml -o allow_other=false,ready_timeout=5s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMount,
}

var (
	mountOptions []string
	mountFSName  string
)

func init() {
	mountCmd.Flags().StringArrayVarP(&mountOptions, "options", "o", nil, "Mount options (ro, rw, fsname=NAME, allow_other=BOOL, ready_timeout=DURATION)")
	mountCmd.Flags().StringVar(&mountFSName, "fsname", "", "Filesystem name shown in the mount table")
	rootCmd.AddCommand(mountCmd)
}

// resolveMountConfig folds the mount arguments and flags into cfg.
func resolveMountConfig(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.Mount.Point = args[0]
	}
	if err := config.ApplyMountOptions(cfg, mountOptions); err != nil {
		return err
	}
	if mountFSName != "" {
		cfg.Mount.FSName = mountFSName
	}

	abs, err := filepath.Abs(cfg.Mount.Point)
	if err != nil {
		return fmt.Errorf("failed to resolve mount point: %w", err)
	}
	cfg.Mount.Point = abs

	return config.Validate(cfg)
}

// newEngine builds the state engine described by cfg.
func newEngine(cfg *config.Config) (*engine.Engine, error) {
	duplicates, err := engine.ParseDuplicatePolicy(cfg.Engine.DuplicateNames)
	if err != nil {
		return nil, err
	}
	writes, err := engine.ParseWriteMode(cfg.Engine.WriteMode)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Options{
		DuplicateNames: duplicates,
		WriteMode:      writes,
		ReadOnly:       cfg.Mount.ReadOnly,
		EntryTTL:       cfg.Engine.EntryTTL,
		AttrTTL:        cfg.Engine.AttrTTL,
	}), nil
}

func fsOptions(cfg *config.Config) fs.Options {
	return fs.Options{
		UID:              cfg.Owner.UID,
		GID:              cfg.Owner.GID,
		ReaddirBatch:     cfg.Engine.ReaddirBatch,
		FSName:           cfg.Mount.FSName,
		AllowOther:       cfg.Mount.AllowOther,
		ReadOnly:         cfg.Mount.ReadOnly,
		CreateMountPoint: cfg.Mount.CreateMountPoint,
		ReadyTimeout:     cfg.Mount.ReadyTimeout,
	}
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := resolveMountConfig(cfg, args); err != nil {
		return err
	}

	logger := logging.GetLogger()
	logger.Info("Starting flatfs...")
	logger.Debug("Mount point: %s", cfg.Mount.Point)

	sessions, err := session.NewManager(cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize session registry: %w", err)
	}
	record, err := sessions.Acquire(cfg.Mount.Point, cfg.Mount.FSName)
	if err != nil {
		return err
	}
	logger = logger.WithField("session", record.ID)
	defer func() {
		if err := sessions.Release(); err != nil {
			logger.Warn("Failed to release session: %v", err)
		}
	}()

	e, err := newEngine(cfg)
	if err != nil {
		return err
	}

	vfs := fs.New(e, fsOptions(cfg))
	if err := vfs.Mount(cfg.Mount.Point); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- vfs.Wait() }()

	fmt.Fprintf(cmd.OutOrStdout(), "Mounted %s at %s (session %s)\n", cfg.Mount.FSName, cfg.Mount.Point, record.ID)

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		if err := vfs.Unmount(); err != nil {
			return fmt.Errorf("unmount failed: %w", err)
		}
	case err := <-served:
		// unmounted from outside, e.g. by "flatfs unmount" or fusermount -u
		if err != nil {
			return fmt.Errorf("filesystem server stopped: %w", err)
		}
	}

	stats := e.Stats()
	logger.Info("Clean shutdown complete (%d files, %s discarded)", stats.Files, humanize.IBytes(stats.Bytes))
	return nil
}
