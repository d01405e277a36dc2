package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// i0Series is the defining power series I₀(x) = Σ (x²/4)ᵏ / (k!)², summed
// until the terms vanish. Slow but exact enough to serve as a reference.
func i0Series(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4
	for k := 1; k < 200; k++ {
		term *= q / float64(k*k)
		sum += term
		if term < sum*1e-17 {
			break
		}
	}
	return sum
}

func TestBesselI0(t *testing.T) {
	assert.Equal(t, 1.0, BesselI0(0))

	// Both the polynomial branch (<3.75) and the asymptotic branch.
	for _, x := range []float64{0.1, 0.5, 1, 2, 3.7, 3.8, 5, 7, 10, 20} {
		want := i0Series(x)
		got := BesselI0(x)
		assert.InEpsilon(t, want, got, 1e-6, "x=%g", x)
	}
}

func TestBesselI0_Even(t *testing.T) {
	for _, x := range []float64{0.5, 2, 8} {
		assert.Equal(t, BesselI0(x), BesselI0(-x))
	}
}
