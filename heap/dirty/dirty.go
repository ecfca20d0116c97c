package dirty

import (
	"context"
	"sort"

	"github.com/sixstars/starctf2022/heap"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability after dirty pages are written.
type FlushMode int

const (
	// FlushAuto writes dirty pages and fdatasyncs the image.
	FlushAuto FlushMode = iota

	// FlushDataOnly writes dirty pages without syncing the file descriptor.
	FlushDataOnly

	// FlushFull writes dirty pages and forces them to the physical disk
	// (F_FULLFSYNC on macOS).
	FlushFull
)

// Range represents a dirty byte range (arena offsets).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	a        *heap.Arena
	ranges   []Range
	pageSize int64
}

// NewTracker creates a dirty tracker for the given arena.
func NewTracker(a *heap.Arena) *Tracker {
	return &Tracker{
		a:        a,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. Alignment and merging happen at flush time.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// Len returns the number of recorded (uncoalesced) ranges.
func (t *Tracker) Len() int { return len(t.ranges) }

// Flush writes every dirty page back to the image and then syncs the file
// according to mode. Ranges are cleared only after a successful write.
//
// The context is checked before each range; if cancelled midway some ranges
// may have been flushed while others have not.
func (t *Tracker) Flush(ctx context.Context, mode FlushMode) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.a.File() == nil {
		t.Reset()
		return nil
	}

	data := t.a.Bytes()
	if len(data) == 0 {
		t.Reset()
		return nil
	}

	if err := t.flushRanges(ctx, data); err != nil {
		return err
	}
	t.Reset()

	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == FlushDataOnly {
		return nil
	}
	return syncFile(t.a, mode == FlushFull)
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *Tracker) DebugRanges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// DebugCoalescedRanges returns the page-aligned, sorted, merged ranges that
// would be flushed.
func (t *Tracker) DebugCoalescedRanges() []Range {
	return t.coalesce()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
// The last range is clipped to the arena end.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	limit := int64(t.a.Size())

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize

		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		if end > limit {
			end = limit
		}

		aligned[i] = Range{
			Off: start,
			Len: end - start,
		}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]

	for i := 1; i < len(aligned); i++ {
		next := aligned[i]

		if next.Off <= current.Off+current.Len {
			end := current.Off + current.Len
			nextEnd := next.Off + next.Len
			if nextEnd > end {
				end = nextEnd
			}
			current.Len = end - current.Off
		} else {
			merged = append(merged, current)
			current = next
		}
	}

	merged = append(merged, current)

	return merged
}
