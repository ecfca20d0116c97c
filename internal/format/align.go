package format

// AlignWord returns n rounded up to a multiple of word. word must be a power of two.
//
// Example:
//
//	AlignWord(1, 4)  = 4
//	AlignWord(13, 8) = 16
//	AlignWord(16, 8) = 16
func AlignWord(n, word int) int {
	return (n + word - 1) &^ (word - 1)
}

// AlignDown returns n rounded down to a multiple of a. a must be a power of two.
func AlignDown(n, a int) int {
	return n &^ (a - 1)
}

// AlignPage returns n aligned up to the next 4KB boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n int) int {
	return (n + PageAlignmentMask) & ^PageAlignmentMask
}

// AlignAddr rounds addr up to a multiple of a. a must be a power of two.
func AlignAddr(addr, a uint64) uint64 {
	return (addr + a - 1) &^ (a - 1)
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
