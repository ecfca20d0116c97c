package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetFlags restores every global flag to its default.
func resetFlags(t *testing.T) {
	t.Helper()
	verbose, quiet, jsonOut = false, false, false
	logLevel, logFile = "", ""
	baseFlag, preset = "0x200000", "kernel"
	wordSize, binCount, threshold = 0, 0, 0
	initSize = "0x4000"
	dumpFreeOnly = false
	payloadEncoding, readLen, readHex = "utf8", 0, false
	replayCheck = false
	pagesArena, pagesAlign = "0x400000", 0
}

// newImage creates an initialized image in a temp dir and returns its path.
func newImage(t *testing.T) string {
	t.Helper()
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "kheap.img")
	if _, err := captureOutput(t, func() error { return runInit([]string{path}) }); err != nil {
		t.Fatalf("init: %v", err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
