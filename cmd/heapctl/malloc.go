package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sixstars/starctf2022/heap/alloc"
)

func init() {
	rootCmd.AddCommand(newMallocCmd())
	rootCmd.AddCommand(newFreeCmd())
}

func newMallocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "malloc <image> <size>...",
		Short: "Allocate chunks in a heap image",
		Long: `The malloc command allocates one chunk per size and prints the payload
addresses. A request that cannot be satisfied prints null.

Example:
  heapctl malloc kheap.img 16 0x100 4000
  heapctl malloc kheap.img 64 --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMalloc(args)
		},
	}
}

func newFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free <image> <addr>...",
		Short: "Free chunks in a heap image",
		Long: `The free command returns the chunks at the given payload addresses to the heap.

Example:
  heapctl free kheap.img 0x200148 0x200168`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFree(args)
		},
	}
}

type mallocResult struct {
	Size int    `json:"size"`
	Addr string `json:"addr"`
}

func runMalloc(args []string) error {
	sizes := make([]int, 0, len(args)-1)
	for _, arg := range args[1:] {
		n, err := parseSize(arg)
		if err != nil {
			return err
		}
		sizes = append(sizes, n)
	}

	s, err := openSession(args[0])
	if err != nil {
		return err
	}

	var results []mallocResult
	err = guard(func() error {
		for _, n := range sizes {
			p := s.h.Malloc(n)
			results = append(results, mallocResult{Size: n, Addr: formatPtr(p)})
			printVerbose("malloc(%d) = %s (chunk %d)\n", n, formatPtr(p), s.h.Layout().ChunkSize(n))
		}
		return nil
	})
	if cerr := s.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		printInfo("%s\n", r.Addr)
	}
	return nil
}

func runFree(args []string) error {
	var ptrs []alloc.Ptr
	for _, arg := range args[1:] {
		p, err := parseAddr(arg)
		if err != nil {
			return err
		}
		ptrs = append(ptrs, alloc.Ptr(p))
	}

	s, err := openSession(args[0])
	if err != nil {
		return err
	}

	err = guard(func() error {
		for _, p := range ptrs {
			if err := s.h.Free(p); err != nil {
				return fmt.Errorf("free(%s): %w", formatPtr(p), err)
			}
			printVerbose("free(%s)\n", formatPtr(p))
		}
		return nil
	})
	if cerr := s.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	printInfo("Freed %d chunk(s)\n", len(ptrs))
	return nil
}

func formatPtr(p alloc.Ptr) string {
	if p == alloc.Null {
		return "null"
	}
	return fmt.Sprintf("0x%x", uint64(p))
}
