package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sixstars/starctf2022/heap/alloc"
)

var replayCheck bool

func init() {
	cmd := newReplayCmd()
	cmd.Flags().BoolVar(&replayCheck, "check", false, "Verify the heap after every step")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <image> <script>",
		Short: "Run a malloc/free script against a heap image",
		Long: `The replay command runs a script of allocator operations, one per line:

  malloc <size> [name]   allocate and optionally name the result
  free <name|addr>       free a named or literal address
  check                  verify the heap invariants
  # comment

Use - as the script to read from stdin.

Example:
  heapctl replay kheap.img workload.txt --check`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
}

type replayStep struct {
	Line   int    `json:"line"`
	Op     string `json:"op"`
	Result string `json:"result"`
}

func runReplay(args []string) error {
	var in io.Reader = os.Stdin
	if args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	s, err := openSession(args[0])
	if err != nil {
		return err
	}

	var steps []replayStep
	err = guard(func() error {
		r := &replayer{h: s.h, names: make(map[string]alloc.Ptr)}
		sc := bufio.NewScanner(in)
		for line := 1; sc.Scan(); line++ {
			text := strings.TrimSpace(sc.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			result, err := r.step(text)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if replayCheck {
				if err := s.h.Check(); err != nil {
					return fmt.Errorf("line %d: after %q: %w", line, text, err)
				}
			}
			steps = append(steps, replayStep{Line: line, Op: text, Result: result})
			printVerbose("%4d  %-24s %s\n", line, text, result)
		}
		return sc.Err()
	})
	if cerr := s.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(steps)
	}
	printInfo("Replayed %d step(s)\n", len(steps))
	return nil
}

type replayer struct {
	h     *alloc.Heap
	names map[string]alloc.Ptr
}

func (r *replayer) step(text string) (string, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "malloc":
		if len(fields) < 2 || len(fields) > 3 {
			return "", fmt.Errorf("usage: malloc <size> [name]")
		}
		n, err := parseSize(fields[1])
		if err != nil {
			return "", err
		}
		p := r.h.Malloc(n)
		if len(fields) == 3 {
			r.names[fields[2]] = p
		}
		return formatPtr(p), nil

	case "free":
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: free <name|addr>")
		}
		p, ok := r.names[fields[1]]
		if !ok {
			addr, err := parseAddr(fields[1])
			if err != nil {
				return "", fmt.Errorf("unknown name %q", fields[1])
			}
			p = alloc.Ptr(addr)
		}
		if err := r.h.Free(p); err != nil {
			return "", err
		}
		delete(r.names, fields[1])
		return "ok", nil

	case "check":
		if err := r.h.Check(); err != nil {
			return "", err
		}
		return "ok", nil
	}
	return "", fmt.Errorf("unknown operation %q", fields[0])
}
