//go:build darwin

package dirty

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/sixstars/starctf2022/heap"
)

// flushRanges syncs the whole mapping.
//
// On macOS, msync() requires the address to match the original mmap() address,
// so sub-slices cannot be passed. The kernel only writes dirty pages anyway.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	if !t.a.Mapped() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return unix.Msync(data, unix.MS_SYNC)
}

// syncFile uses F_FULLFSYNC when fullfsync is set, fsync otherwise.
func syncFile(a *heap.Arena, fullfsync bool) error {
	if fullfsync {
		_, err := unix.FcntlInt(uintptr(a.FD()), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(a.FD())
}
