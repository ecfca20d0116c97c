package heap

import (
	"fmt"
	"math"
	"os"
)

// Arena is the heap region, backed by mmap (unix), a file-sized buffer
// (others), or plain memory.
type Arena struct {
	f      *os.File
	data   []byte
	base   uint64
	mapped bool
}

// New creates an in-memory arena of size bytes starting at base.
func New(base uint64, size int) (*Arena, error) {
	if err := checkBounds(base, int64(size)); err != nil {
		return nil, err
	}
	return &Arena{
		data: make([]byte, size),
		base: base,
	}, nil
}

// Wrap builds an arena over existing bytes, such as a read-only image
// mapping. The arena does not own data; Close leaves it alone.
func Wrap(base uint64, data []byte) (*Arena, error) {
	if err := checkBounds(base, int64(len(data))); err != nil {
		return nil, err
	}
	return &Arena{data: data, base: base}, nil
}

func checkBounds(base uint64, size int64) error {
	if base == 0 {
		return ErrBadBase
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	if uint64(size) > math.MaxUint64-base {
		return fmt.Errorf("%w: base=%#x size=%#x", ErrOverflow, base, size)
	}
	return nil
}

// Bytes returns the arena contents. The slice aliases the backing store.
func (a *Arena) Bytes() []byte { return a.data }

// Base returns the address of the first arena byte.
func (a *Arena) Base() uint64 { return a.base }

// Size returns the arena length in bytes.
func (a *Arena) Size() int { return len(a.data) }

// End returns the first address past the arena.
func (a *Arena) End() uint64 { return a.base + uint64(len(a.data)) }

// Contains reports whether addr lies inside the arena.
func (a *Arena) Contains(addr uint64) bool {
	return addr >= a.base && addr < a.End()
}

// Offset converts an absolute address to an arena offset. The caller must
// check Contains first.
func (a *Arena) Offset(addr uint64) int { return int(addr - a.base) }

// Addr converts an arena offset to an absolute address.
func (a *Arena) Addr(off int) uint64 { return a.base + uint64(off) }

// Mapped reports whether the bytes are a shared file mapping.
func (a *Arena) Mapped() bool { return a.mapped }

// File returns the backing file, or nil for in-memory arenas.
func (a *Arena) File() *os.File { return a.f }

// FD returns the backing file descriptor, or -1 for in-memory arenas.
func (a *Arena) FD() int {
	if a == nil || a.f == nil {
		return -1
	}
	return int(a.f.Fd())
}
