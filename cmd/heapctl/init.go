package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sixstars/starctf2022/heap"
	"github.com/sixstars/starctf2022/heap/alloc"
	"github.com/sixstars/starctf2022/heap/dirty"
)

var initSize string

func init() {
	cmd := newInitCmd()
	cmd.Flags().StringVar(&initSize, "size", "0x100000", "Arena size in bytes")
	rootCmd.AddCommand(cmd)
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <image>",
		Short: "Create a heap image",
		Long: `The init command creates a new image file and lays out an empty heap in it:
the bin table followed by one free chunk covering the rest of the arena.

Example:
  heapctl init kheap.img
  heapctl init kheap.img --size 0x4000 --base 0x200000
  heapctl init kheap64.img --preset wide64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args)
		},
	}
}

func runInit(args []string) error {
	path := args[0]
	cfg, err := heapConfig()
	if err != nil {
		return err
	}
	base, err := heapBase()
	if err != nil {
		return err
	}
	size, err := parseSize(initSize)
	if err != nil {
		return err
	}

	a, err := heap.Create(path, base, size)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer a.Close()

	dt := dirty.NewTracker(a)
	h, err := alloc.Init(a, dt, cfg)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to initialize heap: %w", err)
	}
	if err := dt.Flush(context.Background(), dirty.FlushFull); err != nil {
		return fmt.Errorf("failed to flush image: %w", err)
	}

	v := h.View()
	if jsonOut {
		return printJSON(map[string]any{
			"image":       path,
			"preset":      cfg.Name,
			"base":        fmt.Sprintf("0x%x", base),
			"size":        size,
			"word_size":   cfg.WordSize,
			"bins":        cfg.BinCount,
			"first_chunk": fmt.Sprintf("0x%x", v.Addr(v.First)),
			"free":        v.End - v.First,
		})
	}
	printInfo("Initialized %s (%s preset)\n", path, cfg.Name)
	printInfo("  arena:       0x%x-0x%x\n", base, a.End())
	printInfo("  first chunk: 0x%x\n", v.Addr(v.First))
	printInfo("  free bytes:  %s\n", numbers.Sprintf("%d", v.End-v.First))
	return nil
}
