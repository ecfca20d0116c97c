package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixstars/starctf2022/internal/format"
)

func TestPresets_Valid(t *testing.T) {
	for name, cfg := range Presets {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestConfig_KernelLayout(t *testing.T) {
	l := KernelConfig.layout()
	assert.Equal(t, 0x140, l.BinTableSize())
	assert.Equal(t, 0x144, l.MaxSmallSize())
	assert.Equal(t, 12, l.MinChunkSize())
	assert.Equal(t, format.DefaultSplitThreshold, KernelConfig.SplitThreshold)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"word 4", Config{WordSize: 4, BinCount: 1, SplitThreshold: 12}, true},
		{"word 8", Config{WordSize: 8, BinCount: 16, SplitThreshold: 24}, true},
		{"word 2", Config{WordSize: 2, BinCount: 16, SplitThreshold: 12}, false},
		{"zero bins", Config{WordSize: 4, BinCount: 0, SplitThreshold: 12}, false},
		{"threshold one word", Config{WordSize: 4, BinCount: 16, SplitThreshold: 4}, false},
		{"threshold 12 on 64-bit", Config{WordSize: 8, BinCount: 16, SplitThreshold: 12}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrBadConfig)
			}
		})
	}
}
