package fs

import (
	"context"

	"flatfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File is a regular file in the root directory.
type File struct {
	fs  *FS
	ino uint64
}

// Attr implements the Node interface, returning the file's attributes.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	attrs, err := f.fs.engine.GetAttributes(f.ino, f.fs.owner())
	if err != nil {
		return ToFuseError(err)
	}

	fillAttr(a, attrs)
	a.Valid = f.fs.engine.AttrTTL()

	fileLogger.Trace("File attributes: ino=%d mode=%v size=%d", a.Inode, a.Mode, a.Size)
	return nil
}

// Getattr implements the NodeGetattrer interface.
func (f *File) Getattr(_ context.Context, req *fuse.GetattrRequest, resp *fuse.GetattrResponse) error {
	attrs, err := f.fs.engine.GetAttributes(f.ino, callerOf(req.Header))
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(&resp.Attr, attrs)
	resp.Attr.Valid = f.fs.engine.AttrTTL()
	return nil
}

// Open implements the NodeOpener interface. Files are always opened for
// direct I/O.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Opening inode %d with flags %v", f.ino, req.Flags)

	opened, err := f.fs.engine.Open(f.ino, uint32(req.Flags))
	if err != nil {
		fileLogger.Warn("Open of inode %d failed: %v", f.ino, err)
		return nil, ToFuseError(err)
	}

	if opened.DirectIO {
		resp.Flags |= fuse.OpenDirectIO
	}
	return &FileHandle{fs: f.fs, ino: f.ino, fh: opened.Handle}, nil
}

// Setattr implements the NodeSetattrer interface. Only size changes are
// applied; other attribute changes are accepted and ignored.
func (f *File) Setattr(_ context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	fileLogger.Debug("Setattr on inode %d: %v", f.ino, req.Valid)

	if req.Valid.Size() {
		if _, err := f.fs.engine.Truncate(f.ino, req.Size); err != nil {
			return ToFuseError(err)
		}
	}

	attrs, err := f.fs.engine.GetAttributes(f.ino, callerOf(req.Header))
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(&resp.Attr, attrs)
	resp.Attr.Valid = f.fs.engine.AttrTTL()
	return nil
}

// FileHandle is an open file. fh is the engine's handle, which is distinct
// from the handle id the kernel sees.
type FileHandle struct {
	fs  *FS
	ino uint64
	fh  uint64
}

// Read implements the HandleReader interface.
func (h *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes from inode %d at offset %d", req.Size, h.ino, req.Offset)

	data, err := h.fs.engine.Read(h.ino, h.fh, req.Offset, req.Size)
	if err != nil {
		return ToFuseError(err)
	}
	resp.Data = data
	return nil
}

// Write implements the HandleWriter interface.
func (h *FileHandle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes to inode %d at offset %d", len(req.Data), h.ino, req.Offset)

	n, err := h.fs.engine.Write(h.ino, h.fh, req.Offset, req.Data, uint32(req.FileFlags))
	if err != nil {
		return ToFuseError(err)
	}
	resp.Size = n
	return nil
}

// Flush implements the HandleFlusher interface.
func (h *FileHandle) Flush(_ context.Context, req *fuse.FlushRequest) error {
	fileLogger.Debug("Flushing inode %d", h.ino)
	return ToFuseError(h.fs.engine.Flush(h.ino, h.fh, uint64(req.LockOwner)))
}
