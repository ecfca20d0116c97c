package alloc

// Ptr is an absolute payload address inside the arena. The zero value is null.
type Ptr uint64

// Null is the pointer returned when an allocation cannot be satisfied.
const Null Ptr = 0

// Allocator is the malloc/free contract of the kernel heap.
//
// Implementations:
//   - Heap: boundary-tag allocator with segregated bins
type Allocator interface {
	// Malloc returns the payload address of a chunk holding at least n
	// bytes, or Null when n is zero or no free chunk fits.
	Malloc(n int) Ptr

	// Free returns the chunk owning p to the heap, merging it with free
	// neighbours. Free(Null) is a no-op.
	Free(p Ptr) error
}

var _ Allocator = (*Heap)(nil)
