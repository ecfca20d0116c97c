package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrZeroSize indicates a chunk header with a zero size word.
	ErrZeroSize = errors.New("format: zero-size chunk")
	// ErrMisaligned indicates an offset or size that is not a word multiple.
	ErrMisaligned = errors.New("format: misaligned chunk")
	// ErrWordSize indicates a word size other than 4 or 8.
	ErrWordSize = errors.New("format: unsupported word size")
)
