// Package format holds the byte-level layout of kernel heap chunks. The goal
// is to keep header decoding focused and allocation-free, and independent from
// the allocator so verifiers and dump tools can read a raw arena without
// constructing a heap.
package format

const (
	// WordSize32 is the machine word of the i386 kernel the layout comes from.
	WordSize32 = 4

	// WordSize64 is the machine word on 64-bit hosts.
	WordSize64 = 8

	// HeaderWords is the number of words preceding every payload:
	// the tag word (previous size | flags) and the size word.
	HeaderWords = 2

	// MinWords is the smallest chunk in words. A free chunk must hold its
	// free-list link after the header.
	MinWords = HeaderWords + 1

	// FlagInUse marks the chunk as allocated. Stored in bit 0 of the tag word.
	FlagInUse = 0x1

	// FlagMapped is reserved. No allocator path sets or reads it, but merges
	// carry it over so the bit slot stays intact.
	FlagMapped = 0x2

	// FlagMask covers the low bits of the tag word that hold flags.
	FlagMask = 0x3

	// DefaultBinCount is the number of list heads in the bin table (BINS_SIZE).
	DefaultBinCount = 0x50

	// DefaultSplitThreshold is the smallest leftover that is split off as its
	// own free chunk. Smaller leftovers stay inside the allocation.
	DefaultSplitThreshold = 0xc

	// PageSize is the granule of the physical page allocator.
	PageSize = 0x1000

	// PageAlignmentMask is used by AlignPage.
	PageAlignmentMask = PageSize - 1
)

// Header word offsets relative to the chunk start, in words.
const (
	tagWord  = 0
	sizeWord = 1
	nextWord = 2
)
