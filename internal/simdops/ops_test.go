package simdops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	assert.InDelta(t, 70.0, float64(Dot(a, b)), 1e-6)
}

func TestEnergy(t *testing.T) {
	assert.InDelta(t, 30.0, float64(Energy([]float32{1, 2, 3, 4})), 1e-6)
	assert.Equal(t, float32(0), Energy(make([]float32, 64)))
}

// The SIMD kernels process lanes in chunks; make sure odd tails are handled.
func TestDot_OddLengths(t *testing.T) {
	for _, n := range []int{1, 3, 7, 17, 33, 1023} {
		a := make([]float32, n)
		for i := range a {
			a[i] = 1
		}
		assert.InDelta(t, float64(n), float64(Dot(a, a)), 1e-3, "length %d", n)
	}
}
