package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the name or inode is absent from the file table
	ErrNotFound = errors.New("no such entry")

	// ErrReadOnly indicates a modification attempt on a read-only engine
	ErrReadOnly = errors.New("filesystem is read-only")

	// ErrExists indicates a create collided with an existing name
	ErrExists = errors.New("entry already exists")

	// ErrInvalidOffset indicates a negative read, write or readdir offset
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrInvalidName indicates a create with a name that cannot be a
	// directory entry ("", ".", "..", a slash, or non-UTF-8 bytes)
	ErrInvalidName = errors.New("invalid file name")

	// ErrFileTooLarge indicates content would grow past MaxFileSize
	ErrFileTooLarge = errors.New("file too large")
)

// Error records the operation and the node it was applied to.
type Error struct {
	Op    string // Operation that failed (e.g., "lookup", "write")
	Inode uint64 // Affected inode, 0 when the request named a file instead
	Name  string // Affected name, if any
	Err   error  // Underlying sentinel error
}

func (e *Error) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("operation %s on %q failed: %v", e.Op, e.Name, e.Err)
	case e.Inode != 0:
		return fmt.Sprintf("operation %s on inode %d failed: %v", e.Op, e.Inode, e.Err)
	default:
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func inodeError(op string, ino uint64, err error) *Error {
	return &Error{Op: op, Inode: ino, Err: err}
}

func nameError(op string, name string, err error) *Error {
	return &Error{Op: op, Name: name, Err: err}
}

// Operation names used in errors and log lines.
const (
	OpLookup   = "lookup"
	OpGetattr  = "getattr"
	OpCreate   = "create"
	OpOpen     = "open"
	OpFlush    = "flush"
	OpWrite    = "write"
	OpRead     = "read"
	OpReadDir  = "readdir"
	OpTruncate = "truncate"
)
