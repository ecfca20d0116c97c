package verify

import (
	"fmt"

	"github.com/sixstars/starctf2022/internal/format"
)

// View is a read-only description of a heap image.
type View struct {
	Data   []byte        // Arena bytes
	Base   uint64        // Address of Data[0]
	Layout format.Layout // Word size and bin count
	Bins   []byte        // Bin table, Layout.BinTableSize() bytes
	First  int           // Offset of the first chunk
	End    int           // Offset just past the last chunk
}

// Addr converts an arena offset to an address.
func (v View) Addr(off int) uint64 { return v.Base + uint64(off) }

// ValidationError describes a broken heap invariant.
type ValidationError struct {
	Type    string
	Message string
	Offset  int
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AllInvariants validates all heap invariants in one call.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(v View) error {
	for _, check := range checks {
		if err := check(v); err != nil {
			return err
		}
	}
	return nil
}

// Report runs every check and returns one error per failing check.
func Report(v View) []error {
	var errs []error
	if err := viewShape(v); err != nil {
		return []error{err}
	}
	for _, check := range checks[1:] {
		if err := check(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

var checks = []func(View) error{
	viewShape,
	Coverage,
	BoundaryTags,
	NoAdjacentFree,
	Bins,
}

func viewShape(v View) error {
	if err := v.Layout.Validate(); err != nil {
		return &ValidationError{Type: "View", Message: err.Error(), Offset: -1}
	}
	if len(v.Bins) < v.Layout.BinTableSize() {
		return &ValidationError{
			Type:    "View",
			Message: fmt.Sprintf("bin table too small: %d bytes (need %d)", len(v.Bins), v.Layout.BinTableSize()),
			Offset:  -1,
		}
	}
	if v.First < 0 || v.First > v.End || v.End > len(v.Data) {
		return &ValidationError{
			Type:    "View",
			Message: fmt.Sprintf("chunk region [0x%X, 0x%X) outside arena of 0x%X bytes", v.First, v.End, len(v.Data)),
			Offset:  -1,
		}
	}
	return nil
}

// Walk calls fn for every chunk in address order. It stops at the first
// undecodable header or the first error returned by fn.
func Walk(v View, fn func(c format.Chunk) error) error {
	if err := viewShape(v); err != nil {
		return err
	}
	region := v.Data[:v.End]
	for off := v.First; off < v.End; {
		c, next, err := v.Layout.NextChunk(region, off)
		if err != nil {
			return &ValidationError{
				Type:    "Coverage",
				Message: err.Error(),
				Offset:  off,
			}
		}
		if err := fn(c); err != nil {
			return err
		}
		off = next
	}
	return nil
}

// Coverage validates that chunks tile the chunk region exactly.
func Coverage(v View) error {
	first := true
	return Walk(v, func(c format.Chunk) error {
		if first && c.PrevSize != 0 {
			return &ValidationError{
				Type:    "Coverage",
				Message: fmt.Sprintf("first chunk has previous size %d (expected 0)", c.PrevSize),
				Offset:  c.Offset,
			}
		}
		first = false
		return nil
	})
}

// BoundaryTags validates that each chunk records its predecessor's size.
func BoundaryTags(v View) error {
	prev := format.Chunk{Offset: -1}
	return Walk(v, func(c format.Chunk) error {
		if prev.Offset >= 0 && c.PrevSize != prev.Size {
			return &ValidationError{
				Type:    "BoundaryTags",
				Message: fmt.Sprintf("previous size %d does not match predecessor size %d", c.PrevSize, prev.Size),
				Offset:  c.Offset,
				Details: map[string]any{
					"predecessor": prev.Offset,
					"stored":      c.PrevSize,
					"actual":      prev.Size,
				},
			}
		}
		prev = c
		return nil
	})
}

// NoAdjacentFree validates that free chunks are fully coalesced.
func NoAdjacentFree(v View) error {
	prev := format.Chunk{Offset: -1, Flags: format.FlagInUse}
	return Walk(v, func(c format.Chunk) error {
		if !prev.InUse() && !c.InUse() {
			return &ValidationError{
				Type:    "NoAdjacentFree",
				Message: fmt.Sprintf("free chunk follows free chunk at 0x%X", prev.Offset),
				Offset:  c.Offset,
			}
		}
		prev = c
		return nil
	})
}

// Bins validates the segregated free lists against the chunk walk.
func Bins(v View) error {
	free := make(map[int]bool) // chunk offset -> free
	var order []int
	if err := Walk(v, func(c format.Chunk) error {
		free[c.Offset] = !c.InUse()
		order = append(order, c.Offset)
		return nil
	}); err != nil {
		return err
	}

	listed := make(map[int]int, len(free)) // chunk offset -> bin
	lo, hi := v.Addr(v.First), v.Addr(v.End)
	for i := range v.Layout.BinCount {
		for cur := v.Layout.BinHead(v.Bins, i); cur != 0; {
			if cur < lo || cur >= hi {
				return &ValidationError{
					Type:    "Bins",
					Message: fmt.Sprintf("bin %d links to 0x%X outside the chunk region", i, cur),
					Offset:  -1,
					Details: map[string]any{"bin": i, "addr": cur},
				}
			}
			off := int(cur - v.Base)
			isFree, ok := free[off]
			switch {
			case !ok:
				return &ValidationError{
					Type:    "Bins",
					Message: fmt.Sprintf("bin %d links to 0x%X which is not a chunk start", i, cur),
					Offset:  off,
					Details: map[string]any{"bin": i},
				}
			case !isFree:
				return &ValidationError{
					Type:    "Bins",
					Message: fmt.Sprintf("allocated chunk on bin %d", i),
					Offset:  off,
					Details: map[string]any{"bin": i},
				}
			}
			if other, dup := listed[off]; dup {
				return &ValidationError{
					Type:    "Bins",
					Message: fmt.Sprintf("chunk listed twice (bins %d and %d)", other, i),
					Offset:  off,
					Details: map[string]any{"bin": i, "first": other},
				}
			}
			size := v.Layout.Size(v.Data, off)
			if want := v.Layout.BinIndex(size); want != i {
				return &ValidationError{
					Type:    "Bins",
					Message: fmt.Sprintf("chunk of size %d on bin %d (expected %d)", size, i, want),
					Offset:  off,
					Details: map[string]any{"bin": i, "expected": want, "size": size},
				}
			}
			listed[off] = i
			cur = v.Layout.Next(v.Data, off)
		}
	}

	for _, off := range order {
		if _, ok := listed[off]; free[off] && !ok {
			return &ValidationError{
				Type:    "Bins",
				Message: "free chunk is not on any bin",
				Offset:  off,
			}
		}
	}
	return nil
}
