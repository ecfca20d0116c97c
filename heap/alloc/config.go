package alloc

import (
	"fmt"

	"github.com/sixstars/starctf2022/internal/format"
)

// Config defines the chunk layout and bin strategy of a heap.
type Config struct {
	// Name for this configuration (for logs and benchmarks)
	Name string

	// WordSize is the machine word in bytes (4 or 8). Every header field,
	// link and size is one word and every chunk is word-aligned.
	WordSize int

	// BinCount is the number of list heads. Bins 1..BinCount-1 hold exact
	// sizes up to BinCount*WordSize+WordSize; bin 0 holds everything larger.
	BinCount int

	// SplitThreshold is the smallest leftover split off a large chunk as its
	// own free chunk. Smaller leftovers stay inside the allocation.
	SplitThreshold int

	// InlineBins stores the bin table in the first BinCount*WordSize bytes of
	// the arena so the whole heap lives in the image.
	InlineBins bool
}

// Predefined configurations.
var (
	// DefaultConfig: i386 chunk layout with the bin table kept outside the arena.
	DefaultConfig = Config{
		Name:           "Default",
		WordSize:       format.WordSize32,
		BinCount:       format.DefaultBinCount,
		SplitThreshold: format.DefaultSplitThreshold,
	}

	// KernelConfig: the kernel heap as booted, bin table at the arena start.
	KernelConfig = Config{
		Name:           "Kernel",
		WordSize:       format.WordSize32,
		BinCount:       format.DefaultBinCount,
		SplitThreshold: format.DefaultSplitThreshold,
		InlineBins:     true,
	}

	// Wide64Config: 8-byte words. The threshold is raised to three words so
	// split-off chunks can hold a link.
	Wide64Config = Config{
		Name:           "Wide64",
		WordSize:       format.WordSize64,
		BinCount:       format.DefaultBinCount,
		SplitThreshold: format.MinWords * format.WordSize64,
	}
)

// Presets maps preset names to configurations.
var Presets = map[string]Config{
	"default": DefaultConfig,
	"kernel":  KernelConfig,
	"wide64":  Wide64Config,
}

// Validate reports whether the configuration describes a usable heap.
func (c *Config) Validate() error {
	if err := c.layout().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	if minChunk := format.MinWords * c.WordSize; c.SplitThreshold < minChunk {
		return fmt.Errorf("%w: split threshold %d below minimum chunk %d", ErrBadConfig, c.SplitThreshold, minChunk)
	}
	return nil
}

func (c *Config) layout() format.Layout {
	return format.Layout{Word: c.WordSize, BinCount: c.BinCount}
}
