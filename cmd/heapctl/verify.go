package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sixstars/starctf2022/heap/verify"
)

// errInvalid is returned when an image fails verification.
var errInvalid = errors.New("heap image failed verification")

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Check the invariants of a heap image",
		Long: `The verify command checks that the chunks tile the arena, that every
boundary tag matches its predecessor, that no two free chunks touch, and that
the bins hold exactly the free chunks, each in the bin for its size.

Example:
  heapctl verify kheap.img
  heapctl verify kheap.img --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args)
		},
	}
}

type finding struct {
	Check   string         `json:"check"`
	Offset  int            `json:"offset"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func runVerify(args []string) error {
	path := args[0]
	v, cleanup, err := imageView(path)
	if err != nil {
		return err
	}
	defer cleanup()

	var findings []finding
	for _, err := range verify.Report(v) {
		var verr *verify.ValidationError
		if errors.As(err, &verr) {
			findings = append(findings, finding{verr.Type, verr.Offset, verr.Message, verr.Details})
		} else {
			findings = append(findings, finding{Check: "unknown", Offset: -1, Message: err.Error()})
		}
	}

	if jsonOut {
		if err := printJSON(map[string]any{
			"image":    path,
			"valid":    len(findings) == 0,
			"findings": findings,
		}); err != nil {
			return err
		}
	} else if len(findings) == 0 {
		printInfo("✓ %s: heap is consistent (%s bytes of chunks)\n", path, numbers.Sprintf("%d", v.End-v.First))
	} else {
		printInfo("✗ %s: %d problem(s)\n", path, len(findings))
		for _, f := range findings {
			if f.Offset >= 0 {
				printInfo("  %-15s 0x%x: %s\n", f.Check, v.Addr(f.Offset), f.Message)
			} else {
				printInfo("  %-15s %s\n", f.Check, f.Message)
			}
		}
	}

	if len(findings) > 0 {
		return fmt.Errorf("%w: %d problem(s)", errInvalid, len(findings))
	}
	return nil
}
