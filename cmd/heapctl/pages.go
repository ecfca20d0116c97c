package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sixstars/starctf2022/heap"
	"github.com/sixstars/starctf2022/heap/alloc"
)

var (
	pagesArena string
	pagesAlign int
)

func init() {
	cmd := newPagesCmd()
	cmd.Flags().StringVar(&pagesArena, "arena-size", "0x400000", "Size of the page arena in bytes")
	cmd.Flags().IntVar(&pagesAlign, "align", 0, "Alignment of every request (power of two; 0 means page)")
	rootCmd.AddCommand(cmd)
}

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <size>...",
		Short: "Plan page allocations over an arena",
		Long: `The pages command runs the physical page allocator over an empty arena
starting at --base and prints where each request lands. Sizes round up to
whole pages; pages are never returned.

Example:
  heapctl pages 0x1000 0x2800
  heapctl pages 0x1000 0x1000 --align 0x4000 --arena-size 0x10000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPages(args)
		},
	}
}

type pageResult struct {
	Size int    `json:"size"`
	Addr string `json:"addr"`
}

type pagesReport struct {
	Pages     []pageResult `json:"pages"`
	Used      int          `json:"used"`
	Remaining int          `json:"remaining"`
}

func runPages(args []string) error {
	base, err := heapBase()
	if err != nil {
		return err
	}
	size, err := parseSize(pagesArena)
	if err != nil {
		return err
	}
	a, err := heap.New(base, size)
	if err != nil {
		return fmt.Errorf("failed to create page arena: %w", err)
	}

	pa := alloc.NewPageAllocator(a, nil)
	var report pagesReport
	for _, arg := range args {
		n, err := parseSize(arg)
		if err != nil {
			return err
		}
		p, err := pa.Alloc(n, pagesAlign)
		if err != nil {
			return fmt.Errorf("pages(%d): %w", n, err)
		}
		printVerbose("pages(%d) = %s\n", n, formatPtr(p))
		report.Pages = append(report.Pages, pageResult{Size: n, Addr: formatPtr(p)})
	}
	report.Used, report.Remaining = pa.Used(), pa.Remaining()

	if jsonOut {
		return printJSON(report)
	}
	for _, r := range report.Pages {
		printInfo("%s\n", r.Addr)
	}
	printInfo("used %s bytes, %s remaining\n",
		numbers.Sprintf("%d", report.Used), numbers.Sprintf("%d", report.Remaining))
	return nil
}
