package dirty

import "context"

// DirtyTracker is the minimal interface for tracking dirty (modified) byte ranges.
// Offsets are relative to the start of the arena.
//
// This interface is intended for components that only need to notify about dirty regions
// but don't manage flushing themselves (the allocator, the page allocator).
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	Add(off, length int)
}

// FlushableTracker extends DirtyTracker with flushing, for components that
// control when dirty data is persisted (heapctl).
type FlushableTracker interface {
	DirtyTracker

	// Flush writes dirty pages back and syncs according to mode.
	Flush(ctx context.Context, mode FlushMode) error
}

var _ FlushableTracker = (*Tracker)(nil)
