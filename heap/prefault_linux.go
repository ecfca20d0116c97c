//go:build linux

package heap

import (
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// preFault touches every page of a fresh mapping so a truncated or
// unreadable image fails here with an error instead of a SIGBUS inside the
// allocator.
func preFault(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	// MADV_POPULATE_WRITE (Linux 5.14+) reports EFAULT instead of faulting.
	err := unix.Madvise(data, unix.MADV_POPULATE_WRITE)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOSYS) {
		return fmt.Errorf("heap: populate mapping: %w", err)
	}
	return touchPages(data)
}

// touchPages reads one byte per page with faults turned into panics.
func touchPages(data []byte) (err error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heap: fault in mapping: %v", r)
		}
	}()

	var sink byte
	for i := 0; i < len(data); i += unix.Getpagesize() {
		sink ^= data[i]
	}
	sink ^= data[len(data)-1]
	_ = sink
	return nil
}
