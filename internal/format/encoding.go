package format

import "encoding/binary"

// Binary encoding utilities for little-endian words.
//
// The kernel runs on x86, so every header word and bin head is stored
// little-endian regardless of the host.

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// PutWord writes v as a word of the given size. Values wider than a 4-byte
// word are truncated, matching a store through a 32-bit size_t.
func PutWord(b []byte, off, word int, v uint64) {
	if word == WordSize32 {
		PutU32(b, off, uint32(v))
		return
	}
	PutU64(b, off, v)
}

// ReadWord reads a word of the given size.
func ReadWord(b []byte, off, word int) uint64 {
	if word == WordSize32 {
		return uint64(ReadU32(b, off))
	}
	return ReadU64(b, off)
}
