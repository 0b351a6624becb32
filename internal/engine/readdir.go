package engine

import (
	"flatfs/internal/attr"
)

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Inode uint64
	Kind  attr.Kind
	Name  string
}

// DirFiller receives listing entries one at a time. next is the cursor a
// later ReadDir call passes as offset to resume after this entry. Returning
// true means the consumer's buffer is full and emission stops.
type DirFiller func(entry DirEntry, next int64) (full bool)

// ReadDir lists the root directory starting at entry index offset. Files
// come first in creation order, followed by "." and "..". Stopping early on
// a full buffer is not an error: the caller resumes from the last cursor.
func (e *Engine) ReadDir(ino, fh uint64, offset int64, fill DirFiller) error {
	e.mu.Lock()
	entries, err := e.listing(ino, offset)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	// fill runs outside the lock so a consumer may call back into the engine.
	for i := offset; i < int64(len(entries)); i++ {
		if fill(entries[i], i+1) {
			break
		}
	}
	return nil
}

func (e *Engine) listing(ino uint64, offset int64) ([]DirEntry, error) {
	e.log.Debug("READDIR ino=%d offset=%d", ino, offset)

	if ino != RootInode {
		return nil, inodeError(OpReadDir, ino, ErrNotFound)
	}
	if offset < 0 {
		return nil, inodeError(OpReadDir, ino, ErrInvalidOffset)
	}

	entries := make([]DirEntry, 0, len(e.files)+2)
	for _, f := range e.files {
		entries = append(entries, DirEntry{Inode: f.attr.Inode, Kind: attr.KindRegular, Name: f.name})
	}
	entries = append(entries,
		DirEntry{Inode: RootInode, Kind: attr.KindDirectory, Name: "."},
		DirEntry{Inode: RootInode, Kind: attr.KindDirectory, Name: ".."},
	)
	return entries, nil
}
