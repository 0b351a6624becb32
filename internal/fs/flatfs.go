// Package fs serves the flatfs engine over FUSE.
package fs

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"flatfs/internal/engine"
	"flatfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/avast/retry-go/v4"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

const (
	defaultReaddirBatch = 64
	readyPollInterval   = 100 * time.Millisecond
)

// Options configures how an FS reports ownership, pages directory
// listings, and mounts itself.
type Options struct {
	UID              uint32 // owner reported when a request carries no caller
	GID              uint32
	ReaddirBatch     int
	FSName           string
	AllowOther       bool
	ReadOnly         bool
	CreateMountPoint bool
	ReadyTimeout     time.Duration
}

// FS is the FUSE face of an engine. It hands out one File node per inode
// so the kernel sees a stable node for every file.
type FS struct {
	engine *engine.Engine
	opts   Options

	mu    sync.Mutex
	files map[uint64]*File

	conn       *fuse.Conn
	mountPoint string
	done       chan struct{}
	serveErr   error
}

// New wraps e for serving.
func New(e *engine.Engine, opts Options) *FS {
	if opts.ReaddirBatch <= 0 {
		opts.ReaddirBatch = defaultReaddirBatch
	}
	if opts.FSName == "" {
		opts.FSName = "flatfs"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 3 * time.Second
	}

	vfsLogger.Debug("Creating filesystem (owner=%d:%d, readdir batch=%d)",
		opts.UID, opts.GID, opts.ReaddirBatch)

	return &FS{
		engine: e,
		opts:   opts,
		files:  make(map[uint64]*File),
	}
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (vfs *FS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{fs: vfs}, nil
}

// fileNode returns the node for ino, creating it on first use.
func (vfs *FS) fileNode(ino uint64) *File {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()

	if f, ok := vfs.files[ino]; ok {
		return f
	}
	f := &File{fs: vfs, ino: ino}
	vfs.files[ino] = f
	return f
}

func (vfs *FS) owner() engine.Caller {
	return engine.Caller{UID: vfs.opts.UID, GID: vfs.opts.GID}
}

func (vfs *FS) mountOptions() []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName(vfs.opts.FSName),
		fuse.Subtype("flatfs"),
		fuse.AsyncRead(),
	}
	if vfs.opts.AllowOther {
		opts = append(opts, fuse.AllowOther())
	}
	if vfs.opts.ReadOnly {
		opts = append(opts, fuse.ReadOnly())
	}
	return opts
}

// waitForMount polls the mountpoint until it answers a stat as a directory.
func waitForMount(mountPoint string, timeout time.Duration) error {
	attempts := uint(timeout / readyPollInterval)
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			info, err := os.Stat(mountPoint)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", mountPoint)
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(readyPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			vfsLogger.Trace("Mount point not ready (attempt %d): %v", n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("mount point not available after %s: %w", timeout, err)
	}
	return nil
}

// Mount mounts the filesystem at mountPoint and starts serving it in the
// background. It returns once the mountpoint answers.
func (vfs *FS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)
	vfsLogger.Debug("Owner: %d:%d, allow_other=%v, read_only=%v",
		vfs.opts.UID, vfs.opts.GID, vfs.opts.AllowOther, vfs.opts.ReadOnly)

	if vfs.conn != nil {
		return fmt.Errorf("already mounted at %s", vfs.mountPoint)
	}

	if vfs.opts.CreateMountPoint {
		if err := os.MkdirAll(mountPoint, 0o755); err != nil {
			return fmt.Errorf("failed to create mount point: %w", err)
		}
	}

	c, err := fuse.Mount(mountPoint, vfs.mountOptions()...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	vfs.conn = c
	vfs.mountPoint = mountPoint
	vfs.done = make(chan struct{})

	srv := fusefs.New(c, &fusefs.Config{
		Debug: func(msg interface{}) {
			vfsLogger.Trace("%v", msg)
		},
	})

	go func() {
		defer close(vfs.done)
		if err := srv.Serve(vfs); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
			vfs.serveErr = err
		}
	}()

	if err := waitForMount(mountPoint, vfs.opts.ReadyTimeout); err != nil {
		vfsLogger.Error("Mount point not ready: %v", err)
		_ = fuse.Unmount(mountPoint)
		c.Close()
		vfs.conn = nil
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the serve loop exits, which happens after an unmount.
func (vfs *FS) Wait() error {
	if vfs.done == nil {
		return errors.New("not mounted")
	}
	<-vfs.done
	return vfs.serveErr
}

// Unmount cleanly unmounts the filesystem and closes the connection.
func (vfs *FS) Unmount() error {
	if vfs.conn == nil {
		return nil
	}

	vfsLogger.Info("Unmounting filesystem from: %s", vfs.mountPoint)
	if err := fuse.Unmount(vfs.mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}

	<-vfs.done
	if err := vfs.conn.Close(); err != nil {
		vfsLogger.Warn("Closing FUSE connection: %v", err)
	}
	vfs.conn = nil

	vfsLogger.Info("Unmount completed successfully")
	return nil
}

// Unmount detaches whatever is mounted at mountPoint. It is used for
// mounts owned by another process.
func Unmount(mountPoint string) error {
	vfsLogger.Info("Unmounting %s", mountPoint)
	return fuse.Unmount(mountPoint)
}
