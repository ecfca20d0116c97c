//go:build linux || freebsd

package dirty

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/sixstars/starctf2022/heap"
)

// flushRanges msyncs each coalesced range of the mapping.
//
// On Linux and FreeBSD, msync() handles page-aligned sub-slices correctly.
func (t *Tracker) flushRanges(ctx context.Context, data []byte) error {
	if !t.a.Mapped() {
		return nil
	}
	for _, r := range t.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := int(r.Off)
		end := int(r.Off + r.Len)
		if end > len(data) {
			continue
		}
		if err := unix.Msync(data[start:end], unix.MS_SYNC); err != nil {
			return err
		}
	}
	return nil
}

// syncFile fdatasyncs the image. fullfsync is ignored on Linux/FreeBSD.
func syncFile(a *heap.Arena, _ bool) error {
	return unix.Fdatasync(a.FD())
}
