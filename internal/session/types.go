// Package session keeps a registry of live mounts so that status and
// unmount can find them from another process.
package session

import (
	"errors"
	"time"
)

// ErrAlreadyMounted is returned by Acquire when another live process
// holds the mountpoint.
var ErrAlreadyMounted = errors.New("mount point is already served by a live session")

// Record describes one live mount.
type Record struct {
	ID         string    `json:"id"`
	PID        int       `json:"pid"`
	MountPoint string    `json:"mount_point"`
	FSName     string    `json:"fs_name"`
	StartedAt  time.Time `json:"started_at"`
}
