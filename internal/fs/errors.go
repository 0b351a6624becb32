package fs

import (
	"context"
	"errors"
	"syscall"

	"flatfs/internal/engine"
	"flatfs/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")
)

// ToFuseError converts an engine error to the errno FUSE replies with.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	errLogger.Trace("Converting error to FUSE error: %v", err)

	switch {
	case errors.Is(err, engine.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, engine.ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, engine.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, engine.ErrInvalidOffset), errors.Is(err, engine.ErrInvalidName):
		return syscall.EINVAL
	case errors.Is(err, engine.ErrFileTooLarge):
		return syscall.EFBIG
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}
