package alloc

import (
	"os"
	"strconv"

	"github.com/sixstars/starctf2022/internal/logger"
)

// Runtime debug flag for allocation logging - controlled by HEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAP_LOG_ALLOC") != ""

func (h *Heap) logSplit(chunk, need, left int) {
	if logAlloc {
		logger.Debug("alloc: split",
			"chunk", hex(h.addr(chunk)), "need", need, "left", left)
	}
}

func (h *Heap) logMerge(upper, lower, size int) {
	if logAlloc {
		logger.Debug("alloc: merge",
			"upper", hex(h.addr(upper)), "lower", hex(h.addr(lower)), "size", size)
	}
}

func (h *Heap) logExhausted(n, need int) {
	if logAlloc {
		logger.Debug("alloc: exhausted", "request", n, "chunk", need)
	}
}

func logCorrupt(err error) {
	logger.Error("alloc: corruption", "err", err)
}

type hex uint64

func (x hex) String() string { return "0x" + strconv.FormatUint(uint64(x), 16) }
