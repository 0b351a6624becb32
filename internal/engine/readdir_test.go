package engine

import (
	"fmt"
	"testing"

	"flatfs/internal/attr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listed struct {
	entry DirEntry
	next  int64
}

func collect(t *testing.T, e *Engine, offset int64, limit int) []listed {
	t.Helper()
	var out []listed
	err := e.ReadDir(RootInode, 0, offset, func(entry DirEntry, next int64) bool {
		out = append(out, listed{entry, next})
		return limit > 0 && len(out) >= limit
	})
	require.NoError(t, err)
	return out
}

func TestReadDirCompleteness(t *testing.T) {
	e := newTestEngine(t, Options{})
	names := []string{"b.txt", "a.txt", "c.txt"}
	inodes := make(map[string]uint64)
	for _, n := range names {
		inodes[n] = mustCreate(t, e, n).Attr.Inode
	}

	got := collect(t, e, 0, 0)
	require.Len(t, got, len(names)+2)

	for i, n := range names {
		assert.Equal(t, n, got[i].entry.Name, "files are listed in creation order")
		assert.Equal(t, inodes[n], got[i].entry.Inode)
		assert.Equal(t, attr.KindRegular, got[i].entry.Kind)
		assert.Equal(t, int64(i+1), got[i].next)
	}

	dot, dotdot := got[len(names)], got[len(names)+1]
	assert.Equal(t, ".", dot.entry.Name)
	assert.Equal(t, "..", dotdot.entry.Name)
	assert.Equal(t, RootInode, dot.entry.Inode)
	assert.Equal(t, RootInode, dotdot.entry.Inode)
	assert.Equal(t, attr.KindDirectory, dot.entry.Kind)
	assert.Equal(t, int64(len(names)+2), dotdot.next)

	assert.Equal(t, got, collect(t, e, 0, 0), "listing is stable without mutation")
}

func TestReadDirEmptyDirectory(t *testing.T) {
	e := newTestEngine(t, Options{})
	got := collect(t, e, 0, 0)
	require.Len(t, got, 2)
	assert.Equal(t, ".", got[0].entry.Name)
	assert.Equal(t, "..", got[1].entry.Name)
}

func TestReadDirPagingResumption(t *testing.T) {
	e := newTestEngine(t, Options{})
	for i := 0; i < 7; i++ {
		mustCreate(t, e, fmt.Sprintf("file%d", i))
	}
	full := collect(t, e, 0, 0)

	for k := 0; k <= len(full)+1; k++ {
		tail := collect(t, e, int64(k), 0)
		if k >= len(full) {
			assert.Empty(t, tail, "offset %d", k)
			continue
		}
		assert.Equal(t, full[k:], tail, "offset %d", k)
	}
}

func TestReadDirBackpressure(t *testing.T) {
	e := newTestEngine(t, Options{})
	for i := 0; i < 5; i++ {
		mustCreate(t, e, fmt.Sprintf("f%d", i))
	}
	full := collect(t, e, 0, 0)

	var resumed []listed
	var cursor int64
	for {
		batch := collect(t, e, cursor, 2)
		if len(batch) == 0 {
			break
		}
		assert.LessOrEqual(t, len(batch), 2, "filler saying full stops emission")
		resumed = append(resumed, batch...)
		cursor = batch[len(batch)-1].next
	}
	assert.Equal(t, full, resumed)
}

func TestReadDirErrors(t *testing.T) {
	e := newTestEngine(t, Options{})
	c := mustCreate(t, e, "f")

	called := false
	err := e.ReadDir(c.Attr.Inode, 0, 0, func(DirEntry, int64) bool {
		called = true
		return false
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)

	err = e.ReadDir(RootInode, 0, -1, func(DirEntry, int64) bool { return false })
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestReadDirFillerMayReenter(t *testing.T) {
	e := newTestEngine(t, Options{})
	mustCreate(t, e, "a")

	err := e.ReadDir(RootInode, 0, 0, func(entry DirEntry, _ int64) bool {
		_, err := e.GetAttributes(entry.Inode, testCaller)
		assert.NoError(t, err)
		return false
	})
	require.NoError(t, err)
}
