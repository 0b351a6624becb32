package fs

import (
	"flatfs/internal/attr"
	"flatfs/internal/engine"

	"bazil.org/fuse"
)

func callerOf(h fuse.Header) engine.Caller {
	return engine.Caller{UID: h.Uid, GID: h.Gid}
}

// fillAttr copies an engine attribute record into a FUSE reply.
func fillAttr(a *fuse.Attr, src attr.Attributes) {
	a.Inode = src.Inode
	a.Size = src.Size
	a.Blocks = src.Blocks
	a.Atime = src.Atime
	a.Mtime = src.Mtime
	a.Ctime = src.Ctime
	a.Mode = src.Mode()
	a.Nlink = src.Nlink
	a.Uid = src.UID
	a.Gid = src.GID
	a.Rdev = src.Rdev
	a.BlockSize = src.BlockSize
}

func direntType(k attr.Kind) fuse.DirentType {
	if k == attr.KindDirectory {
		return fuse.DT_Dir
	}
	return fuse.DT_File
}
