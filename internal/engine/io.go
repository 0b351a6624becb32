package engine

import (
	"time"
)

// Write stores payload in the file ino and returns the number of bytes
// accepted, which is always len(payload). With WriteAtOffset the payload
// lands at offset (zero-filling any gap); with WriteAppend it is appended
// whatever offset says. The reported size always equals the stored length.
func (e *Engine) Write(ino, fh uint64, offset int64, payload []byte, flags uint32) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("WRITE ino=%d fh=%d offset=%d len=%d flags=%#x",
		ino, fh, offset, len(payload), flags)

	f, ok := e.byInode[ino]
	if !ok {
		return 0, inodeError(OpWrite, ino, ErrNotFound)
	}
	if e.opts.ReadOnly {
		return 0, inodeError(OpWrite, ino, ErrReadOnly)
	}
	if offset < 0 {
		return 0, inodeError(OpWrite, ino, ErrInvalidOffset)
	}
	if len(payload) == 0 {
		return 0, nil
	}

	if e.opts.WriteMode == WriteAppend {
		offset = int64(len(f.data))
	}

	end := offset + int64(len(payload))
	if end > MaxFileSize || end < offset {
		return 0, inodeError(OpWrite, ino, ErrFileTooLarge)
	}

	data := f.data
	if oldLen := int64(len(data)); end > oldLen {
		if end <= int64(cap(data)) {
			data = data[:end]
			// the spare capacity may hold bytes from before a truncate
			if offset > oldLen {
				clear(data[oldLen:offset])
			}
		} else {
			grown := make([]byte, end, growCap(len(data), int(end)))
			copy(grown, data)
			data = grown
		}
	}
	copy(data[offset:end], payload)
	f.setContent(data, time.Now())

	e.log.Trace("Inode %d now holds %d bytes", ino, len(data))
	return len(payload), nil
}

// growCap doubles the capacity until it fits want, so sequential writes
// do not reallocate on every call.
func growCap(have, want int) int {
	c := have * 2
	if c < 512 {
		c = 512
	}
	for c < want {
		c *= 2
	}
	if int64(c) > MaxFileSize {
		c = want
	}
	return c
}

// Read returns up to size bytes of ino's content starting at offset. A
// size of zero or less means "to the end". Reading at or past the end
// yields an empty slice. The returned slice is a copy.
func (e *Engine) Read(ino, fh uint64, offset int64, size int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("READ ino=%d fh=%d offset=%d size=%d", ino, fh, offset, size)

	f, ok := e.byInode[ino]
	if !ok {
		return nil, inodeError(OpRead, ino, ErrNotFound)
	}
	if offset < 0 {
		return nil, inodeError(OpRead, ino, ErrInvalidOffset)
	}
	if offset >= int64(len(f.data)) {
		return []byte{}, nil
	}

	end := int64(len(f.data))
	if size > 0 && int64(size) < end-offset {
		end = offset + int64(size)
	}

	out := make([]byte, end-offset)
	copy(out, f.data[offset:end])
	return out, nil
}
