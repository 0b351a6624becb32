package engine

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"flatfs/internal/attr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCaller = Caller{UID: 1000, GID: 1000}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	return New(opts)
}

func mustCreate(t *testing.T, e *Engine, name string) Created {
	t.Helper()
	c, err := e.Create(CreateRequest{
		Parent: RootInode,
		Name:   name,
		Mode:   0o644,
		Umask:  0o022,
		Caller: testCaller,
	})
	require.NoError(t, err, "create %q", name)
	return c
}

func TestNewEngineIsEmpty(t *testing.T) {
	e := newTestEngine(t, Options{})

	assert.Equal(t, 0, e.Stats().Files)
	assert.Equal(t, DefaultTTL, e.Options().EntryTTL)
	assert.Equal(t, DefaultTTL, e.Options().AttrTTL)

	s := e.Stats()
	assert.Equal(t, uint64(2), s.NextInode)
	assert.Equal(t, uint64(2), s.NextHandle)
	assert.Zero(t, s.OpenHandles)
}

func TestCreateAllocatesMonotonicIdentifiers(t *testing.T) {
	e := newTestEngine(t, Options{})

	var lastIno, lastFh uint64 = RootInode, 1
	for i := 0; i < 20; i++ {
		c := mustCreate(t, e, fmt.Sprintf("file-%02d", i))
		assert.Greater(t, c.Attr.Inode, lastIno)
		assert.Greater(t, c.Handle, lastFh)
		lastIno, lastFh = c.Attr.Inode, c.Handle
	}

	// opens without a recorded handle also draw from the handle counter
	for ino := uint64(2); ino <= lastIno; ino++ {
		require.NoError(t, e.Flush(ino, 0, 0))
		o, err := e.Open(ino, 0)
		require.NoError(t, err)
		assert.Greater(t, o.Handle, lastFh)
		lastFh = o.Handle
	}
}

func TestCreateReply(t *testing.T) {
	e := newTestEngine(t, Options{})

	c, err := e.Create(CreateRequest{
		Parent: RootInode,
		Name:   "a.txt",
		Flags:  uint32(os.O_RDWR | os.O_CREATE),
		Caller: Caller{UID: 42, GID: 7},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), c.Attr.Inode, "first file gets inode 2")
	assert.Equal(t, uint64(2), c.Handle, "first handle is 2")
	assert.Equal(t, CreateTTL, c.TTL)
	assert.True(t, c.DirectIO)
	assert.Equal(t, uint32(os.O_RDWR|os.O_CREATE), c.Flags)
	assert.Equal(t, attr.KindRegular, c.Attr.Kind)
	assert.Equal(t, uint32(42), c.Attr.UID)
	assert.Equal(t, uint32(7), c.Attr.GID)
	assert.Zero(t, c.Attr.Size)

	fh, ok := e.handle(c.Attr.Inode)
	require.True(t, ok)
	assert.Equal(t, c.Handle, fh)
	assert.Equal(t, 1, e.Stats().Files)
}

func TestCreateDuplicateReject(t *testing.T) {
	e := newTestEngine(t, Options{DuplicateNames: DuplicateReject})
	first := mustCreate(t, e, "dup.txt")
	before := e.Stats()

	_, err := e.Create(CreateRequest{Parent: RootInode, Name: "dup.txt", Caller: testCaller})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	after := e.Stats()
	assert.Equal(t, before, after, "a rejected create consumes no identifiers")
	assert.Equal(t, 1, e.Stats().Files)

	entry, err := e.Lookup(RootInode, "dup.txt", testCaller)
	require.NoError(t, err)
	assert.Equal(t, first.Attr.Inode, entry.Attr.Inode)
}

func TestCreateDuplicateReplace(t *testing.T) {
	e := newTestEngine(t, Options{DuplicateNames: DuplicateReplace})
	first := mustCreate(t, e, "dup.txt")
	_, err := e.Write(first.Attr.Inode, first.Handle, 0, []byte("old content"), 0)
	require.NoError(t, err)

	second := mustCreate(t, e, "dup.txt")
	assert.Equal(t, first.Attr.Inode, second.Attr.Inode, "replace keeps the inode")
	assert.Greater(t, second.Handle, first.Handle)
	assert.Zero(t, second.Attr.Size)
	assert.Equal(t, 1, e.Stats().Files)

	data, err := e.Read(first.Attr.Inode, second.Handle, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCreateInvalidNames(t *testing.T) {
	e := newTestEngine(t, Options{})

	for _, name := range []string{"", ".", "..", "a/b", string([]byte{0xff, 0xfe})} {
		_, err := e.Create(CreateRequest{Parent: RootInode, Name: name, Caller: testCaller})
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
	assert.Equal(t, 0, e.Stats().Files)
}

func TestReadOnlyEngine(t *testing.T) {
	e := newTestEngine(t, Options{ReadOnly: true})

	_, err := e.Create(CreateRequest{Parent: RootInode, Name: "a", Caller: testCaller})
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = e.Open(RootInode, uint32(os.O_WRONLY))
	assert.ErrorIs(t, err, ErrReadOnly)

	o, err := e.Open(RootInode, uint32(os.O_RDONLY))
	require.NoError(t, err)
	assert.True(t, o.DirectIO)
}

func TestReadOnlyRejectsWritesToExistingFiles(t *testing.T) {
	e := newTestEngine(t, Options{})
	c := mustCreate(t, e, "a")

	e.opts.ReadOnly = true

	_, err := e.Write(c.Attr.Inode, c.Handle, 0, []byte("x"), 0)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = e.Truncate(c.Attr.Inode, 0)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = e.Open(c.Attr.Inode, uint32(os.O_RDWR))
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestOpen(t *testing.T) {
	e := newTestEngine(t, Options{})
	c := mustCreate(t, e, "a.txt")

	t.Run("ReturnsRecordedHandle", func(t *testing.T) {
		o, err := e.Open(c.Attr.Inode, 0)
		require.NoError(t, err)
		assert.Equal(t, c.Handle, o.Handle)
		assert.True(t, o.DirectIO)
	})

	t.Run("MintsAfterFlush", func(t *testing.T) {
		require.NoError(t, e.Flush(c.Attr.Inode, c.Handle, 0))
		o, err := e.Open(c.Attr.Inode, 0)
		require.NoError(t, err)
		assert.Greater(t, o.Handle, c.Handle)

		again, err := e.Open(c.Attr.Inode, 0)
		require.NoError(t, err)
		assert.Equal(t, o.Handle, again.Handle, "second open shares the single recorded handle")
	})

	t.Run("UnknownInode", func(t *testing.T) {
		before := e.Stats()
		_, err := e.Open(99, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, before.NextHandle, e.Stats().NextHandle, "no handle minted for a missing inode")
	})

	t.Run("RootDirectory", func(t *testing.T) {
		o, err := e.Open(RootInode, 0)
		require.NoError(t, err)
		assert.NotZero(t, o.Handle)
	})

	t.Run("Truncate", func(t *testing.T) {
		_, err := e.Write(c.Attr.Inode, 0, 0, []byte("content"), 0)
		require.NoError(t, err)

		_, err = e.Open(c.Attr.Inode, uint32(os.O_WRONLY|os.O_TRUNC))
		require.NoError(t, err)

		a, err := e.GetAttributes(c.Attr.Inode, testCaller)
		require.NoError(t, err)
		assert.Zero(t, a.Size)
	})
}

func TestFlushIsIdempotent(t *testing.T) {
	e := newTestEngine(t, Options{})
	c := mustCreate(t, e, "a.txt")

	require.NoError(t, e.Flush(c.Attr.Inode, c.Handle, 1))
	require.NoError(t, e.Flush(c.Attr.Inode, c.Handle, 1))

	_, ok := e.handle(c.Attr.Inode)
	assert.False(t, ok, "no residual handle mapping after flush")

	// mismatched handle and unknown inode are not errors either
	assert.NoError(t, e.Flush(c.Attr.Inode, 12345, 0))
	assert.NoError(t, e.Flush(404, 0, 0))
}

func TestTruncate(t *testing.T) {
	e := newTestEngine(t, Options{})
	c := mustCreate(t, e, "t.bin")
	ino := c.Attr.Inode

	_, err := e.Write(ino, c.Handle, 0, []byte("abcdef"), 0)
	require.NoError(t, err)

	a, err := e.Truncate(ino, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), a.Size)

	// extending after a shrink must expose zeroes, not the old tail
	_, err = e.Write(ino, c.Handle, 5, []byte("Z"), 0)
	require.NoError(t, err)
	data, err := e.Read(ino, c.Handle, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 'Z'}, data)

	a, err = e.Truncate(ino, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), a.Size)
	assert.Equal(t, uint64(1), a.Blocks)

	_, err = e.Truncate(ino, MaxFileSize+1)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = e.Truncate(99, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestErrorMessages(t *testing.T) {
	byName := nameError(OpLookup, "x.txt", ErrNotFound)
	assert.Equal(t, `operation lookup on "x.txt" failed: no such entry`, byName.Error())

	byInode := inodeError(OpRead, 9, ErrNotFound)
	assert.Equal(t, "operation read on inode 9 failed: no such entry", byInode.Error())

	bare := &Error{Op: OpFlush, Err: ErrReadOnly}
	assert.Equal(t, "operation flush failed: filesystem is read-only", bare.Error())

	var target *Error
	wrapped := fmt.Errorf("adapter: %w", byInode)
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, uint64(9), target.Inode)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseDuplicatePolicy("replace")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReplace, p)
	p, err = ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReject, p)
	_, err = ParseDuplicatePolicy("shadow")
	assert.Error(t, err)

	m, err := ParseWriteMode("append")
	require.NoError(t, err)
	assert.Equal(t, WriteAppend, m)
	assert.Equal(t, "append", m.String())
	_, err = ParseWriteMode("random")
	assert.Error(t, err)
}

func TestConcurrentCreatesGetUniqueInodes(t *testing.T) {
	e := newTestEngine(t, Options{})

	const workers = 8
	const perWorker = 25

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c, err := e.Create(CreateRequest{
					Parent: RootInode,
					Name:   fmt.Sprintf("w%d-%d", w, i),
					Caller: testCaller,
				})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[c.Attr.Inode], "inode %d issued twice", c.Attr.Inode)
				seen[c.Attr.Inode] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, workers*perWorker, e.Stats().Files)
}

func TestTimestampsMoveOnWrite(t *testing.T) {
	e := newTestEngine(t, Options{})
	c := mustCreate(t, e, "clock")

	time.Sleep(2 * time.Millisecond)
	_, err := e.Write(c.Attr.Inode, c.Handle, 0, []byte("tick"), 0)
	require.NoError(t, err)

	a, err := e.GetAttributes(c.Attr.Inode, testCaller)
	require.NoError(t, err)
	assert.True(t, a.Mtime.After(c.Attr.Mtime))
	assert.Equal(t, a.Mtime, a.Ctime)
	assert.Equal(t, c.Attr.Crtime, a.Crtime, "creation time is fixed")
}
