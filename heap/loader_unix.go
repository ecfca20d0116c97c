//go:build linux || darwin || freebsd

package heap

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Create makes a zero-filled image file of size bytes and maps it RW.
func Create(path string, base uint64, size int) (*Arena, error) {
	if err := checkBounds(base, int64(size)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("heap: size image: %w", err)
	}
	return mapFile(f, base, int64(size))
}

// Open maps an existing image RW so the allocator can mutate it in place.
func Open(path string, base uint64) (*Arena, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size() == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("empty heap image: %s", path)
	}
	return mapFile(f, base, st.Size())
}

func mapFile(f *os.File, base uint64, size int64) (*Arena, error) {
	if err := checkBounds(base, size); err != nil {
		_ = f.Close()
		return nil, err
	}
	data, err := unix.Mmap(
		int(f.Fd()),
		0,
		int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	if err := preFault(data); err != nil {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, err
	}
	return &Arena{
		f:      f,
		data:   data,
		base:   base,
		mapped: true,
	}, nil
}

// Close unmaps the arena and closes the backing file. In-memory arenas just
// drop their buffer.
func (a *Arena) Close() error {
	var err error
	if a.mapped && a.data != nil {
		if uerr := unix.Munmap(a.data); uerr != nil && !errors.Is(uerr, unix.EINVAL) {
			err = uerr
		}
	}
	a.data = nil
	a.mapped = false
	if a.f != nil {
		if cerr := a.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		a.f = nil
	}
	return err
}
