// Package heap provides the arena that backs a kernel heap: one contiguous
// byte range bound to a fixed base address.
//
// # Overview
//
// The kernel hands its allocator a single region at boot (heap_init with
// base 0x200000 and size 0x100000). An Arena models that region: the bytes
// are addressed by absolute addresses in [Base, End) while the allocator
// stores every header word and list link inside them.
//
// # Backing
//
//	a, err := heap.New(0x200000, 0x100000)      // in memory
//	a, err := heap.Create("kheap.img", 0x200000, 0x100000) // new image file
//	a, err := heap.Open("kheap.img", 0x200000)  // existing image file
//	a, err := heap.Wrap(0x200000, data)         // borrowed bytes, e.g. a read-only mapping
//
// File-backed arenas are memory-mapped read-write on unix, so allocator
// writes land in the page cache directly and heap/dirty can msync them. On
// Linux every page of a new mapping is populated up front, so a truncated image
// fails in Open with an error rather than a SIGBUS later. On
// other platforms the file is read into memory and written back on Close.
//
// # Addresses
//
// Address 0 is the null pointer, so Base must be non-zero. Offset and Addr
// convert between absolute addresses and arena offsets.
//
// # Thread Safety
//
// Arena instances are not thread-safe, matching the allocator that owns them.
package heap
