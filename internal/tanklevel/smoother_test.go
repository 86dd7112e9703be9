package tanklevel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestNewSmootherRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewSmoother(size)
		assert.Error(t, err, "size %d", size)
	}
}

func TestSmootherSeedsWindowWithFirstValue(t *testing.T) {
	s, err := NewSmoother(10)
	require.NoError(t, err)

	assert.Zero(t, s.Mean(), "mean before any update")

	// The first value must fill the whole window: no ramp-up transient
	// dragging the average toward zero.
	assert.Equal(t, 42.5, s.Update(42.5))
	assert.Equal(t, 42.5, s.Mean())
}

func TestSmootherConvergesOnConstant(t *testing.T) {
	const m = 8
	s, err := NewSmoother(m)
	require.NoError(t, err)

	for i := 0; i < m+1; i++ {
		assert.Equal(t, 17.25, s.Update(17.25))
	}
}

func TestSmootherMatchesFullRecomputation(t *testing.T) {
	const m = 7
	s, err := NewSmoother(m)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(99))

	// Shadow window maintained the naive way; the incremental running sum
	// must agree with a full rescan at every step.
	shadow := make([]float64, 0, m)
	next := 0
	for i := 0; i < 200; i++ {
		x := rng.Float64() * 250

		if len(shadow) == 0 {
			for j := 0; j < m; j++ {
				shadow = append(shadow, x)
			}
		} else {
			shadow[next] = x
			next = (next + 1) % m
		}

		assert.InDelta(t, stat.Mean(shadow, nil), s.Update(x), 1e-9, "step %d", i)
	}
}

func TestSmootherDampsSpike(t *testing.T) {
	s, err := NewSmoother(10)
	require.NoError(t, err)

	s.Update(50)
	got := s.Update(500) // implausible batch that slipped past trimming

	// One wild period moves a 10-slot window by a tenth of the spike.
	assert.InDelta(t, 95.0, got, 1e-9)
}
