package alloc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sixstars/starctf2022/heap"
)

const (
	testBase = 0x200000

	// smallArena matches heap_init with a single page.
	smallArena = 0x1000
)

// newTestHeap creates an in-memory heap of size bytes at testBase.
func newTestHeap(t testing.TB, size int, cfg Config) *Heap {
	t.Helper()
	a, err := heap.New(testBase, size)
	require.NoError(t, err)
	h, err := Init(a, nil, cfg)
	require.NoError(t, err)
	return h
}

// assertInvariants fails the test if any heap invariant is broken.
func assertInvariants(t testing.TB, h *Heap) {
	t.Helper()
	require.NoError(t, h.Check())
}

// mustMalloc allocates n bytes and fails the test on Null.
func mustMalloc(t testing.TB, h *Heap, n int) Ptr {
	t.Helper()
	p := h.Malloc(n)
	require.NotEqual(t, Null, p, "Malloc(%d) returned Null", n)
	return p
}

// chunkSize returns the internal size of the chunk owning p.
func chunkSize(t testing.TB, h *Heap, p Ptr) int {
	t.Helper()
	c, err := h.ChunkAt(p)
	require.NoError(t, err)
	return c.Size
}

// freeChunks lists (offset, size) of every free chunk in address order.
func freeChunks(t testing.TB, h *Heap) [][2]int {
	t.Helper()
	var out [][2]int
	off := h.first
	for off < h.end {
		c, next, err := h.layout.NextChunk(h.data[:h.end], off)
		require.NoError(t, err)
		if !c.InUse() {
			out = append(out, [2]int{c.Offset, c.Size})
		}
		off = next
	}
	return out
}

// requireCorrupt asserts that fn panics with an error wrapping ErrCorrupt.
func requireCorrupt(t testing.TB, fn func()) {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected a corruption panic")
	err, ok := got.(error)
	require.True(t, ok, "panic value %v is not an error", got)
	require.True(t, errors.Is(err, ErrCorrupt), "panic %v does not wrap ErrCorrupt", err)
}

// recordingTracker collects dirty ranges for assertions.
type recordingTracker struct {
	ranges [][2]int
}

func (r *recordingTracker) Add(off, length int) {
	r.ranges = append(r.ranges, [2]int{off, length})
}

func (r *recordingTracker) covers(off, length int) bool {
	for _, rg := range r.ranges {
		if off >= rg[0] && off+length <= rg[0]+rg[1] {
			return true
		}
	}
	return false
}

func (r *recordingTracker) String() string { return fmt.Sprint(r.ranges) }
