package engine

import (
	"time"
	"unicode/utf8"

	"flatfs/internal/attr"
)

// Lookup resolves name in the root directory. parent is not validated:
// every name lives in the root.
func (e *Engine) Lookup(parent uint64, name string, c Caller) (Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("LOOKUP parent=%d name=%q", parent, name)

	if !utf8.ValidString(name) {
		e.log.Debug("Lookup name is not valid UTF-8: %q", name)
		return Entry{}, nameError(OpLookup, name, ErrNotFound)
	}

	f := e.findByName(name)
	if f == nil {
		return Entry{}, nameError(OpLookup, name, ErrNotFound)
	}

	return Entry{
		Attr:       f.attr,
		Generation: 0,
		TTL:        e.opts.EntryTTL,
	}, nil
}

// GetAttributes returns the attributes of inode. The root directory's
// attributes are synthesized for the caller on every call.
func (e *Engine) GetAttributes(ino uint64, c Caller) (attr.Attributes, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("GETATTR ino=%d", ino)

	if ino == RootInode {
		return rootAttributes(c), nil
	}

	f, ok := e.byInode[ino]
	if !ok {
		return attr.Attributes{}, inodeError(OpGetattr, ino, ErrNotFound)
	}
	return f.attr, nil
}

// AttrTTL is how long getattr replies may be cached.
func (e *Engine) AttrTTL() time.Duration {
	return e.opts.AttrTTL
}
