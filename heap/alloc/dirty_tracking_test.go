package alloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixstars/starctf2022/heap"
	"github.com/sixstars/starctf2022/heap/dirty"
)

func TestDirtyTracking_InlineInit(t *testing.T) {
	a, err := heap.New(testBase, smallArena)
	require.NoError(t, err)
	dt := &recordingTracker{}

	h, err := Init(a, dt, KernelConfig)
	require.NoError(t, err)

	assert.True(t, dt.covers(0, 0x140), "bin table: %v", dt)
	assert.True(t, dt.covers(h.first, 8), "first header: %v", dt)
	assert.True(t, dt.covers(h.first+8, 4), "first link: %v", dt)
}

func TestDirtyTracking_MallocFree(t *testing.T) {
	a, err := heap.New(testBase, smallArena)
	require.NoError(t, err)
	dt := &recordingTracker{}
	h, err := Init(a, dt, KernelConfig)
	require.NoError(t, err)

	dt.ranges = nil
	p := mustMalloc(t, h, 32)
	off := a.Offset(uint64(p)) - 8
	tail := off + 40

	assert.True(t, dt.covers(off, 8), "allocated header: %v", dt)
	assert.True(t, dt.covers(tail, 8), "split tail header: %v", dt)
	assert.True(t, dt.covers(tail+8, 4), "split tail link: %v", dt)
	assert.True(t, dt.covers(0, 4), "bin 0 head: %v", dt)

	dt.ranges = nil
	require.NoError(t, h.Free(p))
	assert.True(t, dt.covers(off, 8), "merged header: %v", dt)
	assert.True(t, dt.covers(off+8, 4), "merged link: %v", dt)
}

func TestDirtyTracking_OutOfBandBinsNotReported(t *testing.T) {
	a, err := heap.New(testBase, smallArena)
	require.NoError(t, err)
	dt := &recordingTracker{}
	h, err := Init(a, dt, DefaultConfig)
	require.NoError(t, err)

	dt.ranges = nil
	mustMalloc(t, h, 32)
	for _, r := range dt.ranges {
		assert.GreaterOrEqual(t, r[0], 0)
		assert.LessOrEqual(t, r[0]+r[1], smallArena)
	}
}

func TestDirtyTracking_FlushPersists(t *testing.T) {
	path := t.TempDir() + "/kheap.img"
	a, err := heap.Create(path, testBase, 0x8000)
	require.NoError(t, err)
	defer a.Close()

	dt := dirty.NewTracker(a)
	h, err := Init(a, dt, KernelConfig)
	require.NoError(t, err)
	p := mustMalloc(t, h, 0x3000)
	copy(h.Payload(p), "flushed")
	dt.Add(a.Offset(uint64(p)), 7)

	require.NoError(t, dt.Flush(context.Background(), dirty.FlushAuto))
	assert.Zero(t, dt.Len())

	b, err := heap.Open(path, testBase)
	require.NoError(t, err)
	defer b.Close()
	h2, err := Attach(b, nil, KernelConfig)
	require.NoError(t, err)
	assert.Equal(t, "flushed", string(h2.Payload(p)[:7]))
	assertInvariants(t, h2)
}
