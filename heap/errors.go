package heap

import "errors"

var (
	// ErrBadBase indicates a zero base address; 0 is reserved for null.
	ErrBadBase = errors.New("heap: base address must be non-zero")

	// ErrBadSize indicates a non-positive arena size.
	ErrBadSize = errors.New("heap: arena size must be positive")

	// ErrOverflow indicates base+size wraps the address space.
	ErrOverflow = errors.New("heap: arena wraps the address space")
)
