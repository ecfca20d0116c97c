package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sixstars/starctf2022/heap/verify"
	"github.com/sixstars/starctf2022/internal/format"
)

var dumpFreeOnly bool

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpFreeOnly, "free-only", false, "List only free chunks")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <image>",
		Short: "List the chunks and bins of a heap image",
		Long: `The dump command walks the chunks of a heap image in address order and
prints each chunk's address, size, previous size, state and bin, followed by
the non-empty bins.

Example:
  heapctl dump kheap.img
  heapctl dump kheap.img --free-only
  heapctl dump kheap.img --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
}

type chunkRow struct {
	Addr     string `json:"addr"`
	Size     int    `json:"size"`
	PrevSize int    `json:"prev_size"`
	State    string `json:"state"`
	Bin      int    `json:"bin"`
}

type binRow struct {
	Index  int    `json:"index"`
	Head   string `json:"head"`
	Length int    `json:"length"`
}

type heapSummary struct {
	Chunks      int `json:"chunks"`
	InUse       int `json:"in_use_bytes"`
	Free        int `json:"free_bytes"`
	LargestFree int `json:"largest_free"`
}

func runDump(args []string) error {
	path := args[0]
	v, cleanup, err := imageView(path)
	if err != nil {
		return err
	}
	defer cleanup()

	var rows []chunkRow
	var sum heapSummary
	walkErr := verify.Walk(v, func(c format.Chunk) error {
		sum.Chunks++
		row := chunkRow{
			Addr:     fmt.Sprintf("0x%x", v.Addr(c.Offset)),
			Size:     c.Size,
			PrevSize: c.PrevSize,
			State:    chunkState(c),
			Bin:      -1,
		}
		if c.InUse() {
			sum.InUse += c.Size
		} else {
			sum.Free += c.Size
			sum.LargestFree = max(sum.LargestFree, c.Size)
			row.Bin = v.Layout.BinIndex(c.Size)
		}
		if !dumpFreeOnly || !c.InUse() {
			rows = append(rows, row)
		}
		return nil
	})
	bins := binRows(v, sum.Chunks)

	if jsonOut {
		out := map[string]any{
			"image":   path,
			"chunks":  rows,
			"bins":    bins,
			"summary": sum,
		}
		if walkErr != nil {
			out["error"] = walkErr.Error()
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return walkErr
	}

	printInfo("\nHeap Image Dump: %s\n", path)
	printInfo("%s\n\n", strings.Repeat("═", 40))
	printInfo("%-18s %10s %10s  %-12s %s\n", "ADDRESS", "SIZE", "PREV", "STATE", "BIN")
	for _, r := range rows {
		bin := ""
		if r.Bin >= 0 {
			bin = fmt.Sprint(r.Bin)
		}
		printInfo("%-18s %10s %10s  %-12s %s\n", r.Addr,
			numbers.Sprintf("%d", r.Size), numbers.Sprintf("%d", r.PrevSize), r.State, bin)
	}

	printInfo("\nBins:\n")
	if len(bins) == 0 {
		printInfo("  (all empty)\n")
	}
	for _, b := range bins {
		printInfo("  [%2d] head=%s length=%d\n", b.Index, b.Head, b.Length)
	}

	printInfo("\nChunks: %s  in use: %s bytes  free: %s bytes  largest free: %s bytes\n",
		numbers.Sprintf("%d", sum.Chunks), numbers.Sprintf("%d", sum.InUse),
		numbers.Sprintf("%d", sum.Free), numbers.Sprintf("%d", sum.LargestFree))

	if walkErr != nil {
		printError("walk stopped: %v\n", walkErr)
	}
	return walkErr
}

func chunkState(c format.Chunk) string {
	state := "free"
	if c.InUse() {
		state = "in-use"
	}
	if c.Mapped() {
		state += "+mapped"
	}
	return state
}

// binRows lists the non-empty bins. List walks stop at links leaving the
// chunk region and after limit steps so corrupt images still dump.
func binRows(v verify.View, limit int) []binRow {
	var rows []binRow
	lo, hi := v.Addr(v.First), v.Addr(v.End)
	for i := range v.Layout.BinCount {
		head := v.Layout.BinHead(v.Bins, i)
		if head == 0 {
			continue
		}
		n := 0
		for cur := head; cur >= lo && cur < hi && n <= limit; n++ {
			off := int(cur - v.Base)
			if off+v.Layout.HeaderSize()+v.Layout.Word > v.End {
				break
			}
			cur = v.Layout.Next(v.Data, off)
		}
		rows = append(rows, binRow{Index: i, Head: fmt.Sprintf("0x%x", head), Length: n})
	}
	return rows
}
