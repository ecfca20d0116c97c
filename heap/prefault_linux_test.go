//go:build linux

package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPreFault_AnonymousMapping(t *testing.T) {
	data, err := unix.Mmap(-1, 0, 4*unix.Getpagesize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	defer unix.Munmap(data)

	require.NoError(t, preFault(data))
	require.NoError(t, touchPages(data))
}

func TestPreFault_Empty(t *testing.T) {
	require.NoError(t, preFault(nil))
}
