// Package dirty provides page-level dirty tracking for heap image files.
//
// # Overview
//
// The allocator writes header words, free-list links and bin heads straight
// into the arena. When the arena is a mapped image file those writes live in
// the page cache until they are flushed. The Tracker records every written
// range and flushes only the pages that changed.
//
// # Usage
//
//	a, _ := heap.Open("kheap.img", 0x200000)
//	tracker := dirty.NewTracker(a)
//	h, _ := alloc.Attach(a, tracker, alloc.KernelConfig)
//
//	p := h.Malloc(64)
//	...
//	if err := tracker.Flush(ctx, dirty.FlushAuto); err != nil {
//	    return err
//	}
//
// # Page-Level Granularity
//
// Ranges are rounded out to 4KB pages, sorted and merged at flush time:
//
//	Dirty pages: [0, 1, 2, 5, 6] → Ranges: [0x0-0x3000, 0x5000-0x7000]
//
// In-memory arenas have nothing to flush; Flush only clears the ranges.
package dirty
