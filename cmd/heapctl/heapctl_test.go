package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixstars/starctf2022/heap/alloc"
)

func TestInit_Output(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "kheap.img")

	out, err := captureOutput(t, func() error { return runInit([]string{path}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"Initialized", "0x200000-0x204000", "first chunk: 0x200140", "16,064"})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0x4000), info.Size())
}

func TestInit_RefusesExisting(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runInit([]string{path}) })
	require.Error(t, err)
}

func TestInit_TooSmallRemovesImage(t *testing.T) {
	resetFlags(t)
	initSize = "0x100"
	path := filepath.Join(t.TempDir(), "tiny.img")

	_, err := captureOutput(t, func() error { return runInit([]string{path}) })
	require.ErrorIs(t, err, alloc.ErrArenaTooSmall)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMallocFree_RoundTrip(t *testing.T) {
	path := newImage(t)

	out, err := captureOutput(t, func() error { return runMalloc([]string{path, "16", "0x100"}) })
	require.NoError(t, err)
	assert.Equal(t, "0x200148\n0x200160\n", out)

	out, err = captureOutput(t, func() error { return runVerify([]string{path}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"consistent"})

	out, err = captureOutput(t, func() error { return runFree([]string{path, "0x200148", "0x200160"}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"Freed 2 chunk(s)"})

	out, err = captureOutput(t, func() error { return runMalloc([]string{path, "16"}) })
	require.NoError(t, err)
	assert.Equal(t, "0x200148\n", out, "freed memory is reused")
}

func TestMalloc_JSONAndNull(t *testing.T) {
	path := newImage(t)
	jsonOut = true

	out, err := captureOutput(t, func() error { return runMalloc([]string{path, "0", "0x10000"}) })
	require.NoError(t, err)
	assertJSON(t, out)

	var results []mallocResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "null", results[0].Addr)
	assert.Equal(t, "null", results[1].Addr)
}

func TestFree_Errors(t *testing.T) {
	path := newImage(t)

	_, err := captureOutput(t, func() error { return runFree([]string{path, "0x100"}) })
	require.ErrorIs(t, err, alloc.ErrBadPointer)

	_, err = captureOutput(t, func() error { return runMalloc([]string{path, "16", "16"}) })
	require.NoError(t, err)
	_, err = captureOutput(t, func() error { return runFree([]string{path, "0x200148"}) })
	require.NoError(t, err)
	_, err = captureOutput(t, func() error { return runFree([]string{path, "0x200148"}) })
	require.ErrorIs(t, err, alloc.ErrCorrupt, "double free is reported, not fatal")
}

func TestFree_DamagedSizeWord(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runMalloc([]string{path, "16", "16"}) })
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[0x144:], 0xFFFFFFF0)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = captureOutput(t, func() error { return runFree([]string{path, "0x200148"}) })
	require.ErrorIs(t, err, alloc.ErrCorrupt)
}

func TestWriteRead(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runMalloc([]string{path, "32"}) })
	require.NoError(t, err)

	_, err = captureOutput(t, func() error { return runWrite([]string{path, "0x200148", "init task"}) })
	require.NoError(t, err)

	out, err := captureOutput(t, func() error { return runRead([]string{path, "0x200148"}) })
	require.NoError(t, err)
	assert.Equal(t, "init task\n", out)

	readHex, readLen = true, 4
	out, err = captureOutput(t, func() error { return runRead([]string{path, "0x200148"}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"69 6e 69 74"})
}

func TestWriteRead_Latin1(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runMalloc([]string{path, "16"}) })
	require.NoError(t, err)

	payloadEncoding = "latin1"
	_, err = captureOutput(t, func() error { return runWrite([]string{path, "0x200148", "café"}) })
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9, 0}, data[0x148:0x14d], "one byte per character")

	out, err := captureOutput(t, func() error { return runRead([]string{path, "0x200148"}) })
	require.NoError(t, err)
	assert.Equal(t, "café\n", out)
}

func TestWrite_Errors(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runMalloc([]string{path, "4"}) })
	require.NoError(t, err)

	_, err = captureOutput(t, func() error { return runWrite([]string{path, "0x200148", "too long"}) })
	require.ErrorContains(t, err, "does not fit")

	_, err = captureOutput(t, func() error { return runWrite([]string{path, "0x200300", "x"}) })
	require.ErrorIs(t, err, alloc.ErrBadPointer)

	payloadEncoding = "ebcdic"
	_, err = captureOutput(t, func() error { return runWrite([]string{path, "0x200148", "x"}) })
	require.ErrorContains(t, err, "unknown encoding")
}

func TestDump(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runMalloc([]string{path, "16", "0x200", "16"}) })
	require.NoError(t, err)
	_, err = captureOutput(t, func() error { return runFree([]string{path, "0x200160"}) })
	require.NoError(t, err)

	out, err := captureOutput(t, func() error { return runDump([]string{path}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"Heap Image Dump", "0x200140", "in-use", "free", "Chunks: 4"})

	jsonOut = true
	out, err = captureOutput(t, func() error { return runDump([]string{path}) })
	require.NoError(t, err)
	assertJSON(t, out)

	var parsed struct {
		Chunks  []chunkRow  `json:"chunks"`
		Bins    []binRow    `json:"bins"`
		Summary heapSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Chunks, 4)
	assert.Equal(t, "free", parsed.Chunks[1].State)
	assert.Equal(t, 0x208, parsed.Chunks[1].Size)
	assert.Equal(t, 4, parsed.Summary.Chunks)
	assert.Equal(t, 48, parsed.Summary.InUse)
	require.Len(t, parsed.Bins, 1, "both free chunks are large")
	assert.Equal(t, 2, parsed.Bins[0].Length)
}

func TestVerify_DetectsCorruption(t *testing.T) {
	path := newImage(t)
	_, err := captureOutput(t, func() error { return runMalloc([]string{path, "16", "16"}) })
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// second chunk claims a 32-byte predecessor
	binary.LittleEndian.PutUint32(data[0x158:], 0x20|1)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := captureOutput(t, func() error { return runVerify([]string{path}) })
	require.ErrorIs(t, err, errInvalid)
	assertContains(t, out, []string{"BoundaryTags", "0x200158"})

	jsonOut = true
	out, err = captureOutput(t, func() error { return runVerify([]string{path}) })
	require.ErrorIs(t, err, errInvalid)
	assertJSON(t, out)
	assert.Contains(t, out, `"valid": false`)
}

func TestReplay(t *testing.T) {
	path := newImage(t)
	script := filepath.Join(t.TempDir(), "work.txt")
	require.NoError(t, os.WriteFile(script, []byte(strings.Join([]string{
		"# boot allocations",
		"malloc 16 a",
		"malloc 0x200 b",
		"malloc 16 c",
		"",
		"free b",
		"free a",
		"check",
		"malloc 0x1f0 d",
		"free d",
		"free c",
	}, "\n")), 0o644))

	replayCheck = true
	jsonOut = true
	out, err := captureOutput(t, func() error { return runReplay([]string{path, script}) })
	require.NoError(t, err)
	assertJSON(t, out)

	var steps []replayStep
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, 9)
	assert.Equal(t, "0x200148", steps[0].Result)
	assert.Equal(t, "0x200160", steps[1].Result)
	assert.Equal(t, "0x200148", steps[6].Result, "merged a+b serves d first-fit")

	jsonOut = false
	out, err = captureOutput(t, func() error { return runVerify([]string{path}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"consistent"})
}

func TestReplay_Errors(t *testing.T) {
	path := newImage(t)
	script := filepath.Join(t.TempDir(), "bad.txt")

	require.NoError(t, os.WriteFile(script, []byte("malloc 16 a\nfree a\nfree 0x200148\n"), 0o644))
	_, err := captureOutput(t, func() error { return runReplay([]string{path, script}) })
	require.ErrorIs(t, err, alloc.ErrCorrupt)
	require.ErrorContains(t, err, "double free")

	require.NoError(t, os.WriteFile(script, []byte("realloc 16\n"), 0o644))
	_, err = captureOutput(t, func() error { return runReplay([]string{path, script}) })
	require.ErrorContains(t, err, `line 1: unknown operation "realloc"`)

	require.NoError(t, os.WriteFile(script, []byte("free nobody\n"), 0o644))
	_, err = captureOutput(t, func() error { return runReplay([]string{path, script}) })
	require.ErrorContains(t, err, `unknown name "nobody"`)
}

func TestHeapConfig(t *testing.T) {
	resetFlags(t)
	cfg, err := heapConfig()
	require.NoError(t, err)
	assert.True(t, cfg.InlineBins)
	assert.Equal(t, 4, cfg.WordSize)

	preset = "default"
	cfg, err = heapConfig()
	require.NoError(t, err)
	assert.True(t, cfg.InlineBins, "images always carry their bins")

	preset, wordSize = "kernel", 8
	cfg, err = heapConfig()
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.SplitThreshold, "threshold grows with the word")

	threshold = 12
	_, err = heapConfig()
	require.ErrorIs(t, err, alloc.ErrBadConfig)

	resetFlags(t)
	preset = "buddy"
	_, err = heapConfig()
	require.Error(t, err)
}

func TestWide64Image(t *testing.T) {
	resetFlags(t)
	preset = "wide64"
	path := filepath.Join(t.TempDir(), "kheap64.img")
	_, err := captureOutput(t, func() error { return runInit([]string{path}) })
	require.NoError(t, err)

	out, err := captureOutput(t, func() error { return runMalloc([]string{path, "8"}) })
	require.NoError(t, err)
	assert.Equal(t, "0x200290\n", out, "bin table is 0x50 eight-byte words")

	out, err = captureOutput(t, func() error { return runVerify([]string{path}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"consistent"})
}

func TestParseAddr(t *testing.T) {
	for in, want := range map[string]uint64{"0x200000": 0x200000, "4096": 4096, "0o10": 8} {
		got, err := parseAddr(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := parseAddr("-1")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := captureOutput(t, func() error {
		versionCmd.Run(versionCmd, nil)
		return nil
	})
	require.NoError(t, err)
	assertContains(t, out, []string{"heapctl dev"})
}

func TestPages(t *testing.T) {
	resetFlags(t)
	pagesArena = "0x10000"

	out, err := captureOutput(t, func() error { return runPages([]string{"1", "0x1001"}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"0x200000", "0x201000", "used 12,288 bytes", "53,248 remaining"})

	jsonOut = true
	pagesAlign = 0x4000
	out, err = captureOutput(t, func() error { return runPages([]string{"0x1000", "0x1000"}) })
	require.NoError(t, err)
	assertJSON(t, out)

	var report pagesReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Pages, 2)
	assert.Equal(t, "0x204000", report.Pages[1].Addr)
	assert.Equal(t, 0x5000, report.Used)
	assert.Equal(t, 0xB000, report.Remaining)
}

func TestPages_Errors(t *testing.T) {
	resetFlags(t)
	pagesArena = "0x2000"

	_, err := captureOutput(t, func() error { return runPages([]string{"0x3000"}) })
	require.ErrorIs(t, err, alloc.ErrNoSpace)

	pagesAlign = 3
	_, err = captureOutput(t, func() error { return runPages([]string{"0x1000"}) })
	require.ErrorIs(t, err, alloc.ErrBadConfig)
}

func TestMalloc_Verbose(t *testing.T) {
	path := newImage(t)
	verbose = true

	out, err := captureOutput(t, func() error { return runMalloc([]string{path, "16"}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"Attached kernel heap, 4-byte words, first chunk 0x200140", "malloc(16) = 0x200148 (chunk 24)"})
}
