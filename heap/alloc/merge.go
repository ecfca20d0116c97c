package alloc

// merge joins the free chunk at upper with the free chunk right after it.
// Neither may be on a bin. Returns the merged chunk offset.
func (h *Heap) merge(upper, lower int) int {
	size := h.chunkSize(upper) + h.chunkSize(lower)
	flags := h.layout.Flags(h.data, upper) | h.layout.Flags(h.data, lower)

	h.layout.PutHeader(h.data, upper, size, h.layout.PrevSize(h.data, upper), flags)
	h.markHeader(upper)
	h.fixNextPrev(upper)
	h.logMerge(upper, lower, size)
	return upper
}

// fixNextPrev records the size of the chunk at off in its successor.
func (h *Heap) fixNextPrev(off int) {
	next := off + h.chunkSize(off)
	if next >= h.end {
		return
	}
	if next+h.layout.HeaderSize() > h.end {
		corrupt("chunk 0x%x leaves a partial header before the region end", h.addr(off))
	}
	h.layout.PutPrevSize(h.data, next, h.layout.Size(h.data, off))
	h.markHeader(next)
}
