package alloc

import (
	"fmt"
	"math"

	"github.com/sixstars/starctf2022/heap"
	"github.com/sixstars/starctf2022/heap/verify"
	"github.com/sixstars/starctf2022/internal/format"
)

// Heap is a boundary-tag allocator over one arena.
//
// Every chunk starts with two words: the previous chunk's size with the
// flag bits packed in, and its own size. Free chunks are threaded through
// their first payload word into a bin: bins 1..BinCount-1 hold one exact
// size each and are served LIFO, bin 0 holds all larger chunks and is
// searched first-fit. Freed chunks merge with free neighbours, so no two
// free chunks are ever adjacent.
//
// Heap is not safe for concurrent use.
type Heap struct {
	a      *heap.Arena
	dt     DirtyTracker // Dirty tracker for every header, link and bin word written (may be nil)
	cfg    Config
	layout format.Layout

	data []byte // arena bytes
	bins []byte // bin table: the arena prefix (inline) or its own buffer

	first int // offset of the first chunk
	end   int // offset just past the last chunk

	maxSteps int // upper bound on any list walk; longer walks mean a cycle
}

// Init lays a fresh heap over the arena: an empty bin table and one free
// chunk covering the whole chunk region.
//
// Parameters:
//   - a: The arena to manage
//   - dt: Dirty tracker notified of every write (can be nil)
//   - cfg: Layout and bin strategy
func Init(a *heap.Arena, dt DirtyTracker, cfg Config) (*Heap, error) {
	h, err := newHeap(a, dt, cfg)
	if err != nil {
		return nil, err
	}

	clear(h.bins)
	if h.cfg.InlineBins {
		h.markDirty(0, len(h.bins))
	}

	h.layout.PutHeader(h.data, h.first, h.end-h.first, 0, 0)
	h.markHeader(h.first)
	h.install(h.first)
	return h, nil
}

// Attach binds to a heap previously laid out by Init in the same arena.
// Only configurations with InlineBins carry their whole state in the arena.
func Attach(a *heap.Arena, dt DirtyTracker, cfg Config) (*Heap, error) {
	if !cfg.InlineBins {
		return nil, fmt.Errorf("%w: attach needs inline bins", ErrBadConfig)
	}
	h, err := newHeap(a, dt, cfg)
	if err != nil {
		return nil, err
	}

	c, err := h.layout.ReadChunk(h.data[:h.end], h.first)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotInitialized, err)
	}
	if c.PrevSize != 0 || c.End() > h.end {
		return nil, fmt.Errorf("%w: first chunk at 0x%x has size %d, previous size %d",
			ErrNotInitialized, h.addr(c.Offset), c.Size, c.PrevSize)
	}
	return h, nil
}

// ViewOf describes the heap image in an arena without binding an allocator
// to it. It never fails on corrupted contents; run the verify checks on the
// result to find out whether the image is sound.
func ViewOf(a *heap.Arena, cfg Config) (verify.View, error) {
	if !cfg.InlineBins {
		return verify.View{}, fmt.Errorf("%w: image view needs inline bins", ErrBadConfig)
	}
	h, err := newHeap(a, nil, cfg)
	if err != nil {
		return verify.View{}, err
	}
	return h.View(), nil
}

func newHeap(a *heap.Arena, dt DirtyTracker, cfg Config) (*Heap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := cfg.layout()

	if a.Base()%uint64(l.Word) != 0 {
		return nil, fmt.Errorf("%w: 0x%x is not %d-byte aligned", ErrBadBase, a.Base(), l.Word)
	}
	if l.Word == format.WordSize32 && a.End() > math.MaxUint32+1 {
		return nil, fmt.Errorf("%w: arena end 0x%x exceeds 32-bit addresses", ErrBadBase, a.End())
	}

	h := &Heap{
		a:      a,
		dt:     dt,
		cfg:    cfg,
		layout: l,
		data:   a.Bytes(),
		end:    format.AlignDown(a.Size(), l.Word),
	}
	if cfg.InlineBins {
		h.first = l.BinTableSize()
	}
	if h.end-h.first < l.MinChunkSize() {
		return nil, fmt.Errorf("%w: %d bytes after bin table, need %d",
			ErrArenaTooSmall, max(h.end-h.first, 0), l.MinChunkSize())
	}

	if cfg.InlineBins {
		h.bins = h.data[:h.first:h.first]
	} else {
		h.bins = make([]byte, l.BinTableSize())
	}
	h.maxSteps = (h.end-h.first)/l.MinChunkSize() + 1
	return h, nil
}

// Malloc returns the payload address of a chunk holding at least n bytes,
// or Null when n is zero or negative or no free chunk fits.
//
// A request whose chunk size has an exact bin takes that bin's most recently
// freed chunk without splitting. Otherwise bin 0 is searched first-fit and
// the found chunk is split when the leftover reaches the split threshold.
func (h *Heap) Malloc(n int) Ptr {
	if n <= 0 || n > h.end-h.first {
		return Null
	}
	need := h.layout.ChunkSize(n)

	idx := 0
	if h.layout.IsSmall(need) {
		idx = h.layout.BinIndex(need)
		if h.layout.BinHead(h.bins, idx) == 0 {
			idx = 0
		}
	}

	off, ok := h.take(idx, need)
	if !ok {
		h.logExhausted(n, need)
		return Null
	}
	return Ptr(h.addr(h.layout.PayloadOffset(off)))
}

// take unlinks a chunk able to hold need bytes from bin idx and marks it in use.
func (h *Heap) take(idx, need int) (int, bool) {
	if idx != 0 {
		off := h.linkOffset(h.layout.BinHead(h.bins, idx))
		h.uninstall(off)
		h.setInUse(off, true)
		return off, true
	}

	off, ok := h.firstFit(need)
	if !ok {
		return 0, false
	}
	h.uninstall(off)

	total := h.chunkSize(off)
	last := off
	if left := total - need; left >= h.cfg.SplitThreshold {
		h.layout.PutSize(h.data, off, need)
		tail := off + need
		h.layout.PutHeader(h.data, tail, left, need, 0)
		h.markHeader(tail)
		h.install(tail)
		h.logSplit(off, need, left)
		last = tail
	}
	h.setInUse(off, true)
	h.fixNextPrev(last)
	return off, true
}

// firstFit walks bin 0 in list order and returns the first chunk of at least need bytes.
func (h *Heap) firstFit(need int) (int, bool) {
	steps := 0
	for cur := h.layout.BinHead(h.bins, 0); cur != 0; {
		off := h.linkOffset(cur)
		if h.chunkSize(off) >= need {
			return off, true
		}
		cur = h.layout.Next(h.data, off)
		if steps++; steps > h.maxSteps {
			corrupt("bin 0 does not terminate")
		}
	}
	return 0, false
}

// Free returns the chunk owning p to the heap and merges it with its free
// neighbours. Free(Null) is a no-op. Freeing a chunk that is not in use
// panics with ErrCorrupt.
func (h *Heap) Free(p Ptr) error {
	if p == Null {
		return nil
	}
	off, err := h.chunkOf(p)
	if err != nil {
		return err
	}
	if !h.layout.InUse(h.data, off) {
		corrupt("double free of 0x%x", uint64(p))
	}
	size := h.chunkSize(off)
	h.setInUse(off, false)

	if off != h.first {
		prev := h.layout.PrevSize(h.data, off)
		up := off - prev
		if up < h.first || up >= off || h.chunkSize(up) != prev {
			corrupt("chunk 0x%x records previous size %d", h.addr(off), prev)
		}
		if !h.layout.InUse(h.data, up) {
			h.uninstall(up)
			off = h.merge(up, off)
			size += prev
		}
	}

	if down := off + size; down < h.end && !h.layout.InUse(h.data, down) {
		h.uninstall(down)
		off = h.merge(off, down)
	}

	h.install(off)
	return nil
}

// Payload returns the usable bytes of the allocation at p, or nil if p does
// not name an allocated chunk.
func (h *Heap) Payload(p Ptr) []byte {
	off, err := h.chunkOf(p)
	if err != nil || !h.layout.InUse(h.data, off) {
		return nil
	}
	size := h.layout.Size(h.data, off)
	if size < h.layout.MinChunkSize() || size > h.end-off {
		return nil
	}
	end := off + size
	return h.data[h.layout.PayloadOffset(off):end:end]
}

// ChunkAt decodes the header of the chunk owning p.
func (h *Heap) ChunkAt(p Ptr) (format.Chunk, error) {
	off, err := h.chunkOf(p)
	if err != nil {
		return format.Chunk{}, err
	}
	return h.layout.ReadChunk(h.data[:h.end], off)
}

// chunkOf maps a payload address to its chunk offset.
func (h *Heap) chunkOf(p Ptr) (int, error) {
	addr := uint64(p)
	if !h.a.Contains(addr) {
		return 0, fmt.Errorf("%w: 0x%x outside arena", ErrBadPointer, addr)
	}
	off := h.layout.ChunkOffset(h.a.Offset(addr))
	if off < h.first || off+h.layout.MinChunkSize() > h.end {
		return 0, fmt.Errorf("%w: 0x%x outside chunk region", ErrBadPointer, addr)
	}
	if off%h.layout.Word != 0 {
		return 0, fmt.Errorf("%w: 0x%x misaligned", ErrBadPointer, addr)
	}
	return off, nil
}

// View describes the heap for the verify package.
func (h *Heap) View() verify.View {
	return verify.View{
		Data:   h.data,
		Base:   h.a.Base(),
		Layout: h.layout,
		Bins:   h.bins,
		First:  h.first,
		End:    h.end,
	}
}

// Check runs every heap invariant check.
func (h *Heap) Check() error { return verify.AllInvariants(h.View()) }

// Arena returns the managed arena.
func (h *Heap) Arena() *heap.Arena { return h.a }

// Config returns the configuration the heap was built with.
func (h *Heap) Config() Config { return h.cfg }

// Layout returns the chunk layout.
func (h *Heap) Layout() format.Layout { return h.layout }

// BinHead returns the address of the first chunk on bin i, or 0.
func (h *Heap) BinHead(i int) uint64 { return h.layout.BinHead(h.bins, i) }

// First returns the address of the first chunk.
func (h *Heap) First() uint64 { return h.addr(h.first) }

// addr converts an arena offset to an absolute address.
func (h *Heap) addr(off int) uint64 { return h.a.Addr(off) }

// chunkSize reads the size word of the chunk at off, panicking when it does
// not describe a chunk inside the region.
func (h *Heap) chunkSize(off int) int {
	if off+h.layout.HeaderSize() > h.end {
		corrupt("chunk header at 0x%x runs past the region", h.addr(off))
	}
	size := h.layout.Size(h.data, off)
	if size < h.layout.MinChunkSize() || size%h.layout.Word != 0 || size > h.end-off {
		corrupt("chunk 0x%x has size %d", h.addr(off), size)
	}
	return size
}

// linkOffset converts a bin link to a chunk offset, panicking on links that
// leave the chunk region.
func (h *Heap) linkOffset(link uint64) int {
	base := h.a.Base()
	if link < base+uint64(h.first) || link >= base+uint64(h.end) {
		corrupt("link 0x%x outside chunk region", link)
	}
	off := int(link - base)
	if off%h.layout.Word != 0 || off+h.layout.MinChunkSize() > h.end {
		corrupt("link 0x%x is not a chunk", link)
	}
	return off
}

func (h *Heap) setInUse(off int, inUse bool) {
	flags := h.layout.Flags(h.data, off)
	if inUse {
		flags |= format.FlagInUse
	} else {
		flags &^= format.FlagInUse
	}
	h.layout.PutFlags(h.data, off, flags)
	h.markHeader(off)
}

func (h *Heap) markDirty(off, length int) {
	if h.dt != nil {
		h.dt.Add(off, length)
	}
}

func (h *Heap) markHeader(off int) {
	h.markDirty(off, h.layout.HeaderSize())
}

func (h *Heap) markLink(off int) {
	h.markDirty(h.layout.PayloadOffset(off), h.layout.Word)
}
