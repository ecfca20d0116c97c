package alloc

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestProperty_RandomWorkload runs seeded malloc/free sequences and checks
// after every step that the heap invariants hold and that no live payload
// was overwritten.
func TestProperty_RandomWorkload(t *testing.T) {
	for name, cfg := range Presets {
		for seed := uint64(1); seed <= 8; seed++ {
			t.Run(fmt.Sprintf("%s/seed=%d", name, seed), func(t *testing.T) {
				runWorkload(t, cfg, seed, 400)
			})
		}
	}
}

type liveAlloc struct {
	p    Ptr
	n    int
	fill byte
}

func runWorkload(t *testing.T, cfg Config, seed uint64, steps int) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	h := newTestHeap(t, 0x8000, cfg)

	var live []liveAlloc
	checkLive := func(a liveAlloc) {
		buf := h.Payload(a.p)
		require.GreaterOrEqual(t, len(buf), a.n)
		for i := range a.n {
			require.Equal(t, a.fill, buf[i], "payload of %#x clobbered at %d", uint64(a.p), i)
		}
	}

	for step := range steps {
		if len(live) == 0 || rng.IntN(3) != 0 {
			n := rng.IntN(0x180) + 1
			if rng.IntN(10) == 0 {
				n = rng.IntN(0x1000) + 1
			}
			p := h.Malloc(n)
			if p == Null {
				continue
			}
			a := liveAlloc{p: p, n: n, fill: byte(step)}
			buf := h.Payload(p)
			for i := range n {
				buf[i] = a.fill
			}
			live = append(live, a)
		} else {
			i := rng.IntN(len(live))
			checkLive(live[i])
			require.NoError(t, h.Free(live[i].p))
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		assertInvariants(t, h)
	}

	for _, a := range live {
		checkLive(a)
		require.NoError(t, h.Free(a.p))
	}
	assertInvariants(t, h)
	require.Equal(t, [][2]int{{h.first, h.end - h.first}}, freeChunks(t, h), "everything merges back")
}
