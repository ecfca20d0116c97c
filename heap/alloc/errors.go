package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrBadPointer indicates a pointer that does not name a chunk payload in the arena.
	ErrBadPointer = errors.New("alloc: bad pointer")

	// ErrBadBase indicates an arena whose base address the layout cannot represent.
	ErrBadBase = errors.New("alloc: bad arena base")

	// ErrArenaTooSmall indicates an arena with no room for a single chunk.
	ErrArenaTooSmall = errors.New("alloc: arena too small")

	// ErrBadConfig indicates an invalid allocator configuration.
	ErrBadConfig = errors.New("alloc: bad config")

	// ErrNotInitialized indicates an arena that does not hold a heap image.
	ErrNotInitialized = errors.New("alloc: arena holds no heap")

	// ErrCorrupt is wrapped by the panics raised when the heap structure is
	// found inconsistent (bad bin links, double free, zero-size chunks).
	ErrCorrupt = errors.New("alloc: heap corrupt")

	// ErrNoSpace indicates the page allocator ran past the end of its arena.
	ErrNoSpace = errors.New("alloc: no space")
)

// corrupt panics with an error wrapping ErrCorrupt.
func corrupt(format string, args ...any) {
	err := fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...)
	logCorrupt(err)
	panic(err)
}
