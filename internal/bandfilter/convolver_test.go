package bandfilter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directValid is the reference O(n*k) valid convolution the FFT path must
// reproduce.
func directValid(dst, signal, kernel []float64) {
	for i := range dst {
		sum := 0.0
		for j, k := range kernel {
			sum += k * signal[i+j]
		}
		dst[i] = sum
	}
}

func randSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = 2*rng.Float64() - 1
	}
	return out
}

func TestConvolver_ShortKernelUsesDirectPath(t *testing.T) {
	kernel := randSignal(31, 1)
	c := newConvolver(kernel)
	assert.Nil(t, c.fft, "short kernel should not set up the FFT path")

	signal := randSignal(512, 2)
	outputLen := len(signal) - len(kernel) + 1

	got := make([]float64, outputLen)
	want := make([]float64, outputLen)
	c.Apply(got, signal)
	directValid(want, signal, kernel)

	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "sample %d", i)
	}
}

// TestConvolver_FFTMatchesDirect verifies the overlap-save path reproduces
// the direct convolution for a kernel long enough to trigger it, including
// the partial final block.
func TestConvolver_FFTMatchesDirect(t *testing.T) {
	// Symmetric kernel, as produced by DesignKernel.
	kernel, err := DesignKernel(501, 60, 1200, testRate)
	require.NoError(t, err)

	c := newConvolver(kernel)
	require.NotNil(t, c.fft, "501 taps should use the FFT path")
	assert.GreaterOrEqual(t, c.fftSize, 2*len(kernel))

	for _, n := range []int{len(kernel), 1000, 5000} {
		signal := randSignal(n, int64(n))
		outputLen := n - len(kernel) + 1

		got := make([]float64, outputLen)
		want := make([]float64, outputLen)
		c.Apply(got, signal)
		directValid(want, signal, kernel)

		maxErr := 0.0
		for i := range want {
			if e := math.Abs(want[i] - got[i]); e > maxErr {
				maxErr = e
			}
		}
		assert.Less(t, maxErr, 1e-9, "signal length %d", n)
	}
}

func TestConvolver_ShortSignalIsNoOp(t *testing.T) {
	kernel := randSignal(31, 3)
	c := newConvolver(kernel)

	dst := []float64{42}
	c.Apply(dst, randSignal(10, 4))
	assert.Equal(t, 42.0, dst[0], "signal shorter than kernel must not write")
}
