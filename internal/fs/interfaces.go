// internal/fs/interfaces.go

package fs

import (
	"bazil.org/fuse/fs"
)

// Node is any node the filesystem serves.
type Node interface {
	fs.Node
	fs.NodeGetattrer
}

// Directory is the root directory.
type Directory interface {
	Node
	fs.NodeRequestLookuper
	fs.NodeCreater
	fs.HandleReadDirAller
}

// FileInterface is a regular file.
type FileInterface interface {
	Node
	fs.NodeOpener
	fs.NodeSetattrer
}

// FileHandleInterface is an open file.
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReader
	fs.HandleWriter
	fs.HandleFlusher
}

var (
	_ fs.FS               = (*FS)(nil)
	_ Directory           = (*Dir)(nil)
	_ FileInterface       = (*File)(nil)
	_ FileHandleInterface = (*FileHandle)(nil)
)
