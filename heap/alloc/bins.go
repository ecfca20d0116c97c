package alloc

// install pushes the free chunk at off onto the head of its bin.
func (h *Heap) install(off int) {
	size := h.chunkSize(off)
	i := h.layout.BinIndex(size)

	h.layout.PutNext(h.data, off, h.layout.BinHead(h.bins, i))
	h.markLink(off)
	h.setBinHead(i, h.addr(off))
}

// uninstall unlinks the chunk at off from its bin. The chunk must be listed.
func (h *Heap) uninstall(off int) {
	size := h.chunkSize(off)
	i := h.layout.BinIndex(size)
	target := h.addr(off)
	next := h.layout.Next(h.data, off)

	cur := h.layout.BinHead(h.bins, i)
	if cur == target {
		h.setBinHead(i, next)
		return
	}

	for steps := 0; cur != 0; steps++ {
		if steps > h.maxSteps {
			corrupt("bin %d does not terminate", i)
		}
		curOff := h.linkOffset(cur)
		link := h.layout.Next(h.data, curOff)
		if link == target {
			h.layout.PutNext(h.data, curOff, next)
			h.markLink(curOff)
			return
		}
		cur = link
	}
	corrupt("chunk 0x%x (size %d) missing from bin %d", target, size, i)
}

func (h *Heap) setBinHead(i int, head uint64) {
	h.layout.PutBinHead(h.bins, i, head)
	if h.cfg.InlineBins {
		h.markDirty(i*h.layout.Word, h.layout.Word)
	}
}
