package alloc

import (
	"fmt"

	"github.com/sixstars/starctf2022/heap"
	"github.com/sixstars/starctf2022/internal/buf"
	"github.com/sixstars/starctf2022/internal/format"
)

// PageAllocator hands out zeroed, page-granular regions of an arena with a
// bump pointer. Pages are never returned.
//
// Key characteristics:
//   - O(1) allocation: align the pointer, advance it
//   - Sizes round up to 4KB; alignment is any power of two
//   - No free list and no per-region headers
type PageAllocator struct {
	a  *heap.Arena
	dt DirtyTracker

	// next is the absolute address of the first unallocated byte.
	next uint64
}

// NewPageAllocator creates a page allocator that starts at the arena base.
//
// Parameters:
//   - a: The arena to carve pages from
//   - dt: Dirty tracker for the zeroed pages (can be nil)
func NewPageAllocator(a *heap.Arena, dt DirtyTracker) *PageAllocator {
	return &PageAllocator{a: a, dt: dt, next: a.Base()}
}

// Alloc returns the address of size bytes, rounded up to whole pages and
// aligned to align, zero-filled. align must be a power of two; 0 means page
// alignment.
func (pa *PageAllocator) Alloc(size, align int) (Ptr, error) {
	if size <= 0 {
		return Null, fmt.Errorf("%w: page request of %d bytes", ErrBadConfig, size)
	}
	if align == 0 {
		align = format.PageSize
	}
	if !format.IsPow2(align) {
		return Null, fmt.Errorf("%w: alignment %d is not a power of two", ErrBadConfig, align)
	}

	if _, ok := buf.AddOverflowSafe(size, format.PageAlignmentMask); !ok {
		return Null, fmt.Errorf("%w: page request of %d bytes", ErrNoSpace, size)
	}
	size = format.AlignPage(size)
	start := format.AlignAddr(pa.next, uint64(align))
	if start < pa.next || start > pa.a.End() || uint64(size) > pa.a.End()-start {
		return Null, fmt.Errorf("%w: %d bytes at 0x%x, arena ends at 0x%x", ErrNoSpace, size, start, pa.a.End())
	}

	off := pa.a.Offset(start)
	clear(pa.a.Bytes()[off : off+size])
	if pa.dt != nil {
		pa.dt.Add(off, size)
	}

	pa.next = start + uint64(size)
	return Ptr(start), nil
}

// Used returns the number of bytes consumed, including alignment gaps.
func (pa *PageAllocator) Used() int { return int(pa.next - pa.a.Base()) }

// Remaining returns the bytes left after the bump pointer.
func (pa *PageAllocator) Remaining() int { return int(pa.a.End() - pa.next) }
