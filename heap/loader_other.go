//go:build !linux && !darwin && !freebsd

package heap

import (
	"fmt"
	"io"
	"os"
)

// Create makes a zero-filled image file of size bytes and loads it.
func Create(path string, base uint64, size int) (*Arena, error) {
	if err := checkBounds(base, int64(size)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("heap: size image: %w", err)
	}
	return &Arena{f: f, data: make([]byte, size), base: base}, nil
}

// Open loads the image into memory on platforms without mmap support.
func Open(path string, base uint64) (*Arena, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("empty heap image: %s", path)
	}
	if err := checkBounds(base, st.Size()); err != nil {
		f.Close()
		return nil, err
	}
	buf := make([]byte, st.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, err
	}
	return &Arena{f: f, data: buf, base: base}, nil
}

// Close writes the buffer back to the image and closes the file.
func (a *Arena) Close() error {
	var err error
	if a.f != nil {
		if _, werr := a.f.WriteAt(a.data, 0); werr != nil {
			err = fmt.Errorf("heap: write back image: %w", werr)
		}
		if cerr := a.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		a.f = nil
	}
	a.data = nil
	return err
}
