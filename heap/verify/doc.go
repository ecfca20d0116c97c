// Package verify checks the structural invariants of a heap image.
//
// # Overview
//
// A heap is described by a View: the arena bytes, the address the arena
// starts at, the chunk layout, the bin table and the chunk region bounds.
// The checks read only those bytes, so they work the same on a live
// allocator, a mapped image file, or a corrupted dump.
//
// Checks:
//   - Coverage: chunks tile [First, End) with word-aligned sizes no smaller
//     than the minimum chunk, and the first chunk records a previous size of 0
//   - BoundaryTags: every chunk's previous size equals its predecessor's size
//   - NoAdjacentFree: no two free chunks touch
//   - Bins: every free chunk is on exactly one list, in the bin matching its
//     size; every listed chunk is free; lists are acyclic
//
// # Quick Start
//
//	h, _ := alloc.Init(arena, nil, alloc.DefaultConfig)
//	p := h.Malloc(64)
//	_ = h.Free(p)
//	if err := verify.AllInvariants(h.View()); err != nil {
//	    fmt.Printf("heap corrupt: %v\n", err)
//	}
//
// # ValidationError
//
// All checks return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string         // Check that failed (e.g., "BoundaryTags")
//	    Message string         // Human-readable description
//	    Offset  int            // Arena offset of the offending chunk (-1 if N/A)
//	    Details map[string]any // Additional context
//	}
package verify
