package fs

import (
	"context"

	"flatfs/internal/engine"
	"flatfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is the root directory, the only directory there is.
type Dir struct {
	fs *FS
}

// Attr implements the Node interface, returning directory attributes for
// the configured owner.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for root directory")

	attrs, err := d.fs.engine.GetAttributes(engine.RootInode, d.fs.owner())
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(a, attrs)
	a.Valid = d.fs.engine.AttrTTL()
	return nil
}

// Getattr implements the NodeGetattrer interface. The root is reported as
// owned by whoever asks.
func (d *Dir) Getattr(_ context.Context, req *fuse.GetattrRequest, resp *fuse.GetattrResponse) error {
	attrs, err := d.fs.engine.GetAttributes(engine.RootInode, callerOf(req.Header))
	if err != nil {
		return ToFuseError(err)
	}
	fillAttr(&resp.Attr, attrs)
	resp.Attr.Valid = d.fs.engine.AttrTTL()
	return nil
}

// Lookup implements the NodeRequestLookuper interface, finding a file by name.
func (d *Dir) Lookup(_ context.Context, req *fuse.LookupRequest, resp *fuse.LookupResponse) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q", req.Name)

	entry, err := d.fs.engine.Lookup(engine.RootInode, req.Name, callerOf(req.Header))
	if err != nil {
		dirLogger.Debug("Lookup of %q failed: %v", req.Name, err)
		return nil, ToFuseError(err)
	}

	resp.EntryValid = entry.TTL
	resp.Generation = entry.Generation
	fillAttr(&resp.Attr, entry.Attr)
	resp.Attr.Valid = d.fs.engine.AttrTTL()

	return d.fs.fileNode(entry.Attr.Inode), nil
}

// Create implements the NodeCreater interface, adding an empty file and
// opening it.
func (d *Dir) Create(_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	dirLogger.Info("Creating file %q", req.Name)

	created, err := d.fs.engine.Create(engine.CreateRequest{
		Parent: engine.RootInode,
		Name:   req.Name,
		Mode:   uint32(req.Mode),
		Umask:  uint32(req.Umask),
		Flags:  uint32(req.Flags),
		Caller: callerOf(req.Header),
	})
	if err != nil {
		dirLogger.Warn("Create of %q failed: %v", req.Name, err)
		return nil, nil, ToFuseError(err)
	}

	resp.EntryValid = created.TTL
	resp.Generation = created.Generation
	fillAttr(&resp.Attr, created.Attr)
	if created.DirectIO {
		resp.Flags |= fuse.OpenDirectIO
	}

	ino := created.Attr.Inode
	dirLogger.Debug("Created %q as inode %d, handle %d", req.Name, ino, created.Handle)
	return d.fs.fileNode(ino), &FileHandle{fs: d.fs, ino: ino, fh: created.Handle}, nil
}

// ReadDirAll implements the HandleReadDirAller interface. The listing is
// pulled from the engine a batch at a time, resuming each batch from the
// cursor of the last entry taken.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading root directory")

	batch := d.fs.opts.ReaddirBatch
	var entries []fuse.Dirent
	var offset int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, ToFuseError(err)
		}

		taken := 0
		next := offset
		err := d.fs.engine.ReadDir(engine.RootInode, 0, offset, func(e engine.DirEntry, cursor int64) bool {
			entries = append(entries, fuse.Dirent{
				Inode: e.Inode,
				Type:  direntType(e.Kind),
				Name:  e.Name,
			})
			next = cursor
			taken++
			return taken >= batch
		})
		if err != nil {
			return nil, ToFuseError(err)
		}

		if taken < batch {
			break
		}
		offset = next
	}

	dirLogger.Debug("Root directory contains %d entries", len(entries))
	return entries, nil
}
