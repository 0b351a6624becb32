// Package attr builds the attribute records the filesystem reports for
// its files and for the root directory.
package attr

import (
	"os"
	"time"
)

// BlockSize is the block size reported for every node.
const BlockSize uint32 = 512

// Kind is the node type carried in an attribute record.
type Kind uint8

const (
	KindRegular Kind = iota + 1
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Attributes describes one node.
type Attributes struct {
	Inode     uint64
	Size      uint64
	Blocks    uint64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Crtime    time.Time
	Kind      Kind
	Perm      os.FileMode // permission bits only
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	Flags     uint32
	BlockSize uint32
}

// Mode returns the kind bits combined with the permission bits.
func (a Attributes) Mode() os.FileMode {
	if a.Kind == KindDirectory {
		return os.ModeDir | a.Perm
	}
	return a.Perm
}

// BlocksFor returns the number of BlockSize blocks needed to hold size bytes.
func BlocksFor(size uint64) uint64 {
	return (size + uint64(BlockSize) - 1) / uint64(BlockSize)
}

// NewFile returns the attributes of a freshly created, empty regular file.
func NewFile(inode uint64, uid, gid, flags uint32) Attributes {
	created := time.Now()
	return Attributes{
		Inode:     inode,
		Atime:     time.Unix(0, 0),
		Mtime:     created,
		Ctime:     created,
		Crtime:    created,
		Kind:      KindRegular,
		Perm:      0o644,
		Nlink:     2,
		UID:       uid,
		GID:       gid,
		Flags:     flags,
		BlockSize: BlockSize,
	}
}

// NewDirectory returns directory attributes. The root directory's record
// is rebuilt from this on every query.
func NewDirectory(inode uint64, uid, gid uint32) Attributes {
	created := time.Now()
	return Attributes{
		Inode:     inode,
		Atime:     time.Unix(0, 0),
		Mtime:     created,
		Ctime:     created,
		Crtime:    created,
		Kind:      KindDirectory,
		Perm:      0o755,
		Nlink:     2,
		UID:       uid,
		GID:       gid,
		BlockSize: BlockSize,
	}
}
