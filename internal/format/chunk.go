package format

import (
	"fmt"

	"github.com/sixstars/starctf2022/internal/buf"
)

// Chunk is a decoded chunk header.
//
// Header layout (little-endian, W = word size):
//
//	Offset  Size  Description
//	0       W     Previous chunk size. Bit 0: in use. Bit 1: mapped (reserved).
//	W       W     Chunk size, including the header.
//	2W      W     Free-list link while free; first payload word while in use.
type Chunk struct {
	Offset   int    // Offset relative to the start of the arena
	Size     int    // Total size including header
	PrevSize int    // Size of the preceding chunk in address order
	Flags    uint8  // Low bits of the tag word
	Next     uint64 // Free-list link; only meaningful when the chunk is free
}

// InUse reports whether the chunk is allocated.
func (c Chunk) InUse() bool { return c.Flags&FlagInUse != 0 }

// Mapped reports the reserved mapped bit.
func (c Chunk) Mapped() bool { return c.Flags&FlagMapped != 0 }

// End returns the offset just past the chunk.
func (c Chunk) End() int { return c.Offset + c.Size }

// ReadChunk decodes the chunk header at off, including the link word. It
// checks only that the header fits in b and that the size is non-zero and
// word-aligned; whether the chunk itself fits is left to NextChunk.
func (l Layout) ReadChunk(b []byte, off int) (Chunk, error) {
	if !buf.Has(b, off, MinWords*l.Word) {
		return Chunk{}, fmt.Errorf("chunk at %d: %w", off, ErrTruncated)
	}
	if off%l.Word != 0 {
		return Chunk{}, fmt.Errorf("chunk at %d: %w", off, ErrMisaligned)
	}
	size := l.Size(b, off)
	if size == 0 {
		return Chunk{}, fmt.Errorf("chunk at %d: %w", off, ErrZeroSize)
	}
	if size%l.Word != 0 {
		return Chunk{}, fmt.Errorf("chunk at %d: size %d: %w", off, size, ErrMisaligned)
	}
	return Chunk{
		Offset:   off,
		Size:     size,
		PrevSize: l.PrevSize(b, off),
		Flags:    l.Flags(b, off),
		Next:     l.Next(b, off),
	}, nil
}

// NextChunk decodes the chunk at off and returns it with the offset of the
// chunk that follows in address order. The caller must ensure off points at
// a chunk header.
func (l Layout) NextChunk(b []byte, off int) (Chunk, int, error) {
	c, err := l.ReadChunk(b, off)
	if err != nil {
		return Chunk{}, 0, err
	}
	if c.Size < MinWords*l.Word {
		return Chunk{}, 0, fmt.Errorf("chunk at %d: declared size too small (%d)", off, c.Size)
	}
	if !buf.Has(b, off, c.Size) {
		return Chunk{}, 0, fmt.Errorf("chunk at %d: size %d past arena end: %w", off, c.Size, ErrTruncated)
	}
	return c, c.End(), nil
}
