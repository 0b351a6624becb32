// Package engine holds the in-memory state of a flat, single-directory
// filesystem and answers the requests a FUSE transport forwards to it.
//
// Every file lives in the root directory (inode 1). Inodes and file handles
// come from two monotonic counters and are never reused. File content is
// kept in memory only and disappears with the Engine.
package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"flatfs/internal/attr"
	"flatfs/internal/logging"
)

// RootInode is the inode of the single directory.
const RootInode uint64 = 1

const (
	// DefaultTTL is how long a consumer may cache lookup and getattr replies.
	DefaultTTL = time.Second

	// CreateTTL is the entry lifetime attached to create replies; created
	// entries never expire from a client's cache.
	CreateTTL = time.Duration(math.MaxInt64)

	// MaxFileSize bounds the content a single file may hold.
	MaxFileSize = 1 << 32
)

// DuplicatePolicy decides what Create does when the name is already taken.
type DuplicatePolicy int

const (
	// DuplicateReject fails the create with ErrExists.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateReplace truncates the existing file and opens it anew.
	DuplicateReplace
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReject:
		return "reject"
	case DuplicateReplace:
		return "replace"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// ParseDuplicatePolicy converts a config value to a DuplicatePolicy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return DuplicateReject, nil
	case "replace":
		return DuplicateReplace, nil
	default:
		return DuplicateReject, fmt.Errorf("unknown duplicate name policy %q", s)
	}
}

// WriteMode decides where Write places its payload.
type WriteMode int

const (
	// WriteAtOffset overwrites or extends content at the requested offset.
	WriteAtOffset WriteMode = iota
	// WriteAppend ignores the offset and appends to the content.
	WriteAppend
)

func (m WriteMode) String() string {
	switch m {
	case WriteAtOffset:
		return "offset"
	case WriteAppend:
		return "append"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// ParseWriteMode converts a config value to a WriteMode.
func ParseWriteMode(s string) (WriteMode, error) {
	switch s {
	case "", "offset":
		return WriteAtOffset, nil
	case "append":
		return WriteAppend, nil
	default:
		return WriteAtOffset, fmt.Errorf("unknown write mode %q", s)
	}
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	DuplicateNames DuplicatePolicy
	WriteMode      WriteMode
	ReadOnly       bool
	EntryTTL       time.Duration // defaults to DefaultTTL
	AttrTTL        time.Duration // defaults to DefaultTTL
}

// Caller identifies the process a request came from. It only feeds the
// ownership fields of attributes; no permission checks are made.
type Caller struct {
	UID uint32
	GID uint32
}

// Entry is the reply to a lookup.
type Entry struct {
	Attr       attr.Attributes
	Generation uint64
	TTL        time.Duration
}

type fileRecord struct {
	name string
	attr attr.Attributes
	data []byte
}

// Engine owns the file table, the identifier counters and the
// inode->name / inode->handle maps.
type Engine struct {
	mu sync.Mutex

	files     []*fileRecord          // creation order, drives readdir
	byInode   map[uint64]*fileRecord // inode -> record
	inoCount  uint64
	fhCount   uint64
	inoToName map[uint64]string
	inoToFh   map[uint64]uint64

	opts Options
	log  *logging.Logger
}

// New returns an empty engine: no files, both counters at 1.
func New(opts Options) *Engine {
	if opts.EntryTTL <= 0 {
		opts.EntryTTL = DefaultTTL
	}
	if opts.AttrTTL <= 0 {
		opts.AttrTTL = DefaultTTL
	}

	e := &Engine{
		byInode:   make(map[uint64]*fileRecord),
		inoCount:  RootInode,
		fhCount:   1,
		inoToName: make(map[uint64]string),
		inoToFh:   make(map[uint64]uint64),
		opts:      opts,
		log:       logging.GetLogger().WithPrefix("engine"),
	}
	e.log.Debug("Engine initialized (duplicates=%s, writes=%s, readOnly=%v)",
		opts.DuplicateNames, opts.WriteMode, opts.ReadOnly)
	return e
}

// Options returns the options the engine was built with, defaults applied.
func (e *Engine) Options() Options {
	return e.opts
}

// Stats is a point-in-time summary of the engine's tables.
type Stats struct {
	Files       int
	Bytes       uint64
	OpenHandles int
	NextInode   uint64
	NextHandle  uint64
}

// Stats returns the current table sizes and counter positions.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Files:       len(e.files),
		OpenHandles: len(e.inoToFh),
		NextInode:   e.inoCount + 1,
		NextHandle:  e.fhCount + 1,
	}
	for _, f := range e.files {
		s.Bytes += uint64(len(f.data))
	}
	return s
}

// rootAttributes synthesizes the root directory's attributes for caller.
func rootAttributes(c Caller) attr.Attributes {
	return attr.NewDirectory(RootInode, c.UID, c.GID)
}

func (e *Engine) findByName(name string) *fileRecord {
	for _, f := range e.files {
		if f.name == name {
			return f
		}
	}
	return nil
}

func (e *Engine) nextInode() uint64 {
	e.inoCount++
	return e.inoCount
}

func (e *Engine) nextHandle() uint64 {
	e.fhCount++
	return e.fhCount
}

// setContent replaces a record's content and keeps size, blocks and
// timestamps in step with it.
func (f *fileRecord) setContent(data []byte, now time.Time) {
	f.data = data
	f.attr.Size = uint64(len(data))
	f.attr.Blocks = attr.BlocksFor(f.attr.Size)
	f.attr.Mtime = now
	f.attr.Ctime = now
}
