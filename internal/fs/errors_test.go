package fs

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"flatfs/internal/engine"

	. "github.com/onsi/gomega"
)

func TestToFuseError(t *testing.T) {
	g := NewWithT(t)

	wrapped := func(err error) error {
		return fmt.Errorf("op failed: %w", err)
	}

	cases := []struct {
		err  error
		want syscall.Errno
	}{
		{engine.ErrNotFound, syscall.ENOENT},
		{wrapped(engine.ErrNotFound), syscall.ENOENT},
		{engine.ErrReadOnly, syscall.EROFS},
		{engine.ErrExists, syscall.EEXIST},
		{engine.ErrInvalidOffset, syscall.EINVAL},
		{engine.ErrInvalidName, syscall.EINVAL},
		{engine.ErrFileTooLarge, syscall.EFBIG},
		{context.Canceled, syscall.EINTR},
		{errors.New("boom"), syscall.EIO},
	}

	for _, tc := range cases {
		g.Expect(ToFuseError(tc.err)).To(Equal(tc.want), "mapping %v", tc.err)
	}

	g.Expect(ToFuseError(nil)).To(BeNil())
}

func TestNewAppliesDefaults(t *testing.T) {
	g := NewWithT(t)

	vfs := New(engine.New(engine.Options{}), Options{})
	g.Expect(vfs.opts.ReaddirBatch).To(Equal(defaultReaddirBatch))
	g.Expect(vfs.opts.FSName).To(Equal("flatfs"))
	g.Expect(vfs.opts.ReadyTimeout).To(BeNumerically(">", 0))
	g.Expect(vfs.Unmount()).To(Succeed(), "unmounting an unmounted filesystem is a no-op")
	g.Expect(vfs.Wait()).To(HaveOccurred())
}

func TestWaitForMount(t *testing.T) {
	g := NewWithT(t)

	g.Expect(waitForMount(t.TempDir(), readyPollInterval)).To(Succeed())
	g.Expect(waitForMount(t.TempDir()+"/missing", readyPollInterval)).To(HaveOccurred())
}
