// Package alloc implements the kernel heap: malloc and free over a fixed
// arena using boundary tags and segregated free lists.
//
// # Overview
//
// A Heap splits its arena into chunks that tile it exactly. Each chunk
// carries a two-word header:
//
//	Offset  Size  Description
//	0       W     Previous chunk size | flags (bit 0: in use, bit 1: mapped)
//	W       W     Chunk size including the header
//	2W      W     Free-list link while free; payload while in use
//
// The previous-size word lets Free find the chunk below without a scan, so
// freed memory merges with both neighbours in constant time.
//
// # Bins
//
// The bin table has BinCount list heads (0x50 by default):
//
//	Bin 0:             every chunk larger than BinCount*W + W, first fit
//	Bin i (i >= 1):    chunks of exactly (i+2)*W bytes, last in first out
//
// A small request takes the head of its exact bin when that bin is non-empty
// and never splits it. Everything else searches bin 0 in list order and
// splits the found chunk when the leftover is at least SplitThreshold bytes.
//
// # Usage Example
//
//	a, _ := heap.New(0x200000, 0x100000)
//	h, err := alloc.Init(a, nil, alloc.DefaultConfig)
//	if err != nil {
//	    return err
//	}
//
//	p := h.Malloc(64)
//	copy(h.Payload(p), data)
//	_ = h.Free(p)
//
// # Image Files
//
// With KernelConfig the bin table sits at the start of the arena, as the
// kernel lays it out, so the whole heap state lives in the arena bytes. A
// heap built over a file-backed arena can then be reopened with Attach:
//
//	a, _ := heap.Open("kheap.img", 0x200000)
//	dt := dirty.NewTracker(a)
//	h, err := alloc.Attach(a, dt, alloc.KernelConfig)
//	p := h.Malloc(128)
//	_ = dt.Flush(ctx, dirty.FlushAuto)
//
// # Corruption
//
// A structure the allocator cannot trust (a bin link leaving the arena, a
// chunk missing from its bin, a double free) is a kernel panic: the
// allocator panics with an error wrapping ErrCorrupt.
//
// # Page Allocator
//
// PageAllocator is the physical page allocator that backs the heap: a bump
// pointer over a separate arena handing out zeroed, aligned runs of 4KB pages.
//
// # Logging
//
// Set HEAP_LOG_ALLOC to emit debug records for splits, merges and exhausted
// requests through internal/logger.
//
// # Thread Safety
//
// Heap and PageAllocator are not thread-safe. Callers must synchronize access.
package alloc
