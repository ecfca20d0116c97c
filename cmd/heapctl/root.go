package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sixstars/starctf2022/heap/alloc"
	"github.com/sixstars/starctf2022/internal/logger"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logLevel string
	logFile  string

	// Layout flags
	baseFlag  string
	preset    string
	wordSize  int
	binCount  int
	threshold int
)

// numbers formats sizes with digit grouping in human-readable output.
var numbers = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Create and inspect kernel heap images",
	Long: `heapctl lays out kernel heap images in files and drives the allocator
over them: allocate, free, read and write payloads, dump the chunk list and
verify the heap invariants.

Images carry their bin table inline, exactly as the kernel lays out its heap,
so every command reopens the allocator state from the file alone.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty disables logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	// Layout flags
	rootCmd.PersistentFlags().StringVar(&baseFlag, "base", "0x200000", "Address of the first arena byte")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "kernel", "Layout preset (kernel, default, wide64)")
	rootCmd.PersistentFlags().IntVar(&wordSize, "word-size", 0, "Override the preset word size (4 or 8)")
	rootCmd.PersistentFlags().IntVar(&binCount, "bins", 0, "Override the preset bin count")
	rootCmd.PersistentFlags().IntVar(&threshold, "split-threshold", 0, "Override the preset split threshold")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if logLevel == "" && logFile == "" {
		return logger.Init(logger.Options{})
	}
	lvl := slog.LevelInfo
	if logLevel != "" {
		var err error
		if lvl, err = logger.ParseLevel(logLevel); err != nil {
			return err
		}
	}
	opts := logger.Options{Enabled: true, Level: lvl, JSON: jsonOut}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		opts.Writer = f
	}
	return logger.Init(opts)
}

// heapConfig resolves the layout flags. Images always keep their bin table
// inline.
func heapConfig() (alloc.Config, error) {
	cfg, ok := alloc.Presets[preset]
	if !ok {
		return alloc.Config{}, fmt.Errorf("unknown preset %q (want kernel, default or wide64)", preset)
	}
	if wordSize != 0 {
		cfg.WordSize = wordSize
		if threshold == 0 && cfg.SplitThreshold < 3*wordSize {
			cfg.SplitThreshold = 3 * wordSize
		}
	}
	if binCount != 0 {
		cfg.BinCount = binCount
	}
	if threshold != 0 {
		cfg.SplitThreshold = threshold
	}
	cfg.InlineBins = true
	cfg.Name = preset
	if err := cfg.Validate(); err != nil {
		return alloc.Config{}, err
	}
	return cfg, nil
}

// heapBase parses --base.
func heapBase() (uint64, error) {
	return parseAddr(baseFlag)
}

// parseAddr accepts decimal, 0x hex, 0o octal and 0b binary.
func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}

// parseSize accepts the same forms as parseAddr and must fit an int.
func parseSize(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int(v), nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
