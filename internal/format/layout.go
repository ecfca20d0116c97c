package format

import "fmt"

// Layout describes the word size and bin count a heap was built with. All
// size-class arithmetic depends on it.
type Layout struct {
	Word     int // bytes per machine word (4 or 8)
	BinCount int // number of bin table heads
}

// Validate reports whether the layout can describe a heap.
func (l Layout) Validate() error {
	if l.Word != WordSize32 && l.Word != WordSize64 {
		return fmt.Errorf("%w: %d", ErrWordSize, l.Word)
	}
	if l.BinCount <= 0 {
		return fmt.Errorf("format: bin count must be positive, got %d", l.BinCount)
	}
	return nil
}

// HeaderSize is the distance from a chunk to its payload.
func (l Layout) HeaderSize() int { return HeaderWords * l.Word }

// BinTableSize is the number of bytes the bin table occupies when stored inline.
func (l Layout) BinTableSize() int { return l.BinCount * l.Word }

// MaxSmallSize is the largest chunk size that has its own bin.
func (l Layout) MaxSmallSize() int { return l.BinCount*l.Word + l.Word }

// MinChunkSize is the chunk size of the smallest non-zero request.
func (l Layout) MinChunkSize() int { return l.ChunkSize(1) }

// ChunkSize maps a requested payload size to the internal chunk size:
// the payload rounded up to a word plus the two header words.
func (l Layout) ChunkSize(n int) int {
	return AlignWord(n, l.Word) + HeaderWords*l.Word
}

// BinIndex returns the bin for a chunk size. Sizes above MaxSmallSize share
// the catch-all bin 0.
func (l Layout) BinIndex(size int) int {
	if size > l.MaxSmallSize() {
		return 0
	}
	return (size - HeaderWords*l.Word) / l.Word
}

// IsSmall reports whether size has an exact-size bin.
func (l Layout) IsSmall(size int) bool {
	return size <= l.MaxSmallSize()
}

// PayloadOffset returns the payload offset of the chunk at off.
func (l Layout) PayloadOffset(off int) int { return off + HeaderWords*l.Word }

// ChunkOffset returns the chunk offset owning the payload at off.
func (l Layout) ChunkOffset(payload int) int { return payload - HeaderWords*l.Word }

func (l Layout) word(off, idx int) int { return off + idx*l.Word }

// Size reads the size word of the chunk at off.
func (l Layout) Size(b []byte, off int) int {
	return int(ReadWord(b, l.word(off, sizeWord), l.Word))
}

// PrevSize reads the previous-chunk size from the tag word, without flags.
func (l Layout) PrevSize(b []byte, off int) int {
	return int(ReadWord(b, l.word(off, tagWord), l.Word) &^ FlagMask)
}

// Flags reads the two flag bits from the tag word.
func (l Layout) Flags(b []byte, off int) uint8 {
	return uint8(ReadWord(b, l.word(off, tagWord), l.Word) & FlagMask)
}

// InUse reports whether the chunk at off is allocated.
func (l Layout) InUse(b []byte, off int) bool {
	return l.Flags(b, off)&FlagInUse != 0
}

// Next reads the free-list link of the chunk at off.
func (l Layout) Next(b []byte, off int) uint64 {
	return ReadWord(b, l.word(off, nextWord), l.Word)
}

// PutHeader writes both header words: size, previous size and flags.
func (l Layout) PutHeader(b []byte, off, size, prevSize int, flags uint8) {
	PutWord(b, l.word(off, sizeWord), l.Word, uint64(size))
	PutWord(b, l.word(off, tagWord), l.Word, uint64(prevSize)&^FlagMask|uint64(flags&FlagMask))
}

// PutSize rewrites the size word only.
func (l Layout) PutSize(b []byte, off, size int) {
	PutWord(b, l.word(off, sizeWord), l.Word, uint64(size))
}

// PutPrevSize rewrites the previous size, keeping the flag bits.
func (l Layout) PutPrevSize(b []byte, off, prevSize int) {
	l.PutHeader(b, off, l.Size(b, off), prevSize, l.Flags(b, off))
}

// PutFlags rewrites the flag bits, keeping the previous size.
func (l Layout) PutFlags(b []byte, off int, flags uint8) {
	tag := ReadWord(b, l.word(off, tagWord), l.Word)
	PutWord(b, l.word(off, tagWord), l.Word, tag&^FlagMask|uint64(flags&FlagMask))
}

// PutNext writes the free-list link of the chunk at off.
func (l Layout) PutNext(b []byte, off int, next uint64) {
	PutWord(b, l.word(off, nextWord), l.Word, next)
}

// BinHead reads bin table entry i from a bin table buffer.
func (l Layout) BinHead(table []byte, i int) uint64 {
	return ReadWord(table, i*l.Word, l.Word)
}

// PutBinHead writes bin table entry i.
func (l Layout) PutBinHead(table []byte, i int, head uint64) {
	PutWord(table, i*l.Word, l.Word, head)
}
