package engine

import (
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"flatfs/internal/attr"
)

// CreateRequest carries the fields of a create call.
type CreateRequest struct {
	Parent uint64
	Name   string
	Mode   uint32 // accepted, permissions are fixed
	Umask  uint32 // accepted, permissions are fixed
	Flags  uint32
	Caller Caller
}

// Created is the reply to a create: the new entry plus the handle opened
// on it.
type Created struct {
	Entry
	Handle   uint64
	Flags    uint32
	DirectIO bool
}

// Opened is the reply to an open.
type Opened struct {
	Handle   uint64
	DirectIO bool
}

const writeAccess = uint32(os.O_WRONLY | os.O_RDWR)

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return utf8.ValidString(name) && !strings.Contains(name, "/")
}

// Create adds an empty file named req.Name to the root directory and opens
// it. A new inode and a new handle are allocated for every file created.
// What happens to a name already in use depends on Options.DuplicateNames.
func (e *Engine) Create(req CreateRequest) (Created, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("CREATE parent=%d name=%q mode=%#o umask=%#o flags=%#x",
		req.Parent, req.Name, req.Mode, req.Umask, req.Flags)

	if e.opts.ReadOnly {
		return Created{}, nameError(OpCreate, req.Name, ErrReadOnly)
	}
	if !validName(req.Name) {
		return Created{}, nameError(OpCreate, req.Name, ErrInvalidName)
	}

	if existing := e.findByName(req.Name); existing != nil {
		if e.opts.DuplicateNames != DuplicateReplace {
			e.log.Debug("Create rejected, %q already exists as inode %d",
				req.Name, existing.attr.Inode)
			return Created{}, nameError(OpCreate, req.Name, ErrExists)
		}

		existing.setContent(nil, time.Now())
		fh := e.nextHandle()
		e.inoToFh[existing.attr.Inode] = fh

		e.log.Debug("Create replaced %q: ino=%d fh=%d", req.Name, existing.attr.Inode, fh)
		return Created{
			Entry:    Entry{Attr: existing.attr, TTL: CreateTTL},
			Handle:   fh,
			Flags:    req.Flags,
			DirectIO: true,
		}, nil
	}

	ino := e.nextInode()
	fh := e.nextHandle()

	a := attr.NewFile(ino, req.Caller.UID, req.Caller.GID, req.Flags)
	f := &fileRecord{name: req.Name, attr: a}

	e.inoToName[ino] = req.Name
	e.inoToFh[ino] = fh
	e.files = append(e.files, f)
	e.byInode[ino] = f

	e.log.Debug("Created %q: ino=%d fh=%d", req.Name, ino, fh)
	return Created{
		Entry:    Entry{Attr: a, TTL: CreateTTL},
		Handle:   fh,
		Flags:    req.Flags,
		DirectIO: true,
	}, nil
}

// Open returns the handle recorded for ino, minting one if there is none.
// Opens always ask for direct I/O. An O_TRUNC open empties the file.
func (e *Engine) Open(ino uint64, flags uint32) (Opened, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("OPEN ino=%d flags=%#x", ino, flags)

	f, exists := e.byInode[ino]
	if !exists && ino != RootInode {
		return Opened{}, inodeError(OpOpen, ino, ErrNotFound)
	}

	if flags&writeAccess != 0 || flags&uint32(os.O_TRUNC) != 0 {
		if e.opts.ReadOnly {
			e.log.Warn("Attempted write access to read-only inode %d", ino)
			return Opened{}, inodeError(OpOpen, ino, ErrReadOnly)
		}
		if f != nil && flags&uint32(os.O_TRUNC) != 0 {
			e.log.Debug("Truncating inode %d on open", ino)
			f.setContent(nil, time.Now())
		}
	}

	if fh, ok := e.inoToFh[ino]; ok {
		return Opened{Handle: fh, DirectIO: true}, nil
	}

	fh := e.nextHandle()
	e.inoToFh[ino] = fh
	return Opened{Handle: fh, DirectIO: true}, nil
}

// Flush drops the handle recorded for ino. It succeeds whether or not fh
// matches the recorded handle, and whether or not one was recorded.
func (e *Engine) Flush(ino, fh, lockOwner uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("FLUSH ino=%d fh=%d owner=%#x", ino, fh, lockOwner)
	delete(e.inoToFh, ino)
	return nil
}

// handle reports the handle currently recorded for ino.
func (e *Engine) handle(ino uint64) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fh, ok := e.inoToFh[ino]
	return fh, ok
}

// Truncate sets the content length of ino to size, zero-filling growth.
func (e *Engine) Truncate(ino uint64, size uint64) (attr.Attributes, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("TRUNCATE ino=%d size=%d", ino, size)

	f, ok := e.byInode[ino]
	if !ok {
		return attr.Attributes{}, inodeError(OpTruncate, ino, ErrNotFound)
	}
	if e.opts.ReadOnly {
		return attr.Attributes{}, inodeError(OpTruncate, ino, ErrReadOnly)
	}
	if size > MaxFileSize {
		return attr.Attributes{}, inodeError(OpTruncate, ino, ErrFileTooLarge)
	}

	var data []byte
	if size <= uint64(len(f.data)) {
		data = f.data[:size]
	} else {
		data = make([]byte, size)
		copy(data, f.data)
	}
	f.setContent(data, time.Now())
	return f.attr, nil
}
