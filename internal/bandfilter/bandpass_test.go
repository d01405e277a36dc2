package bandfilter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 48000.0

func sine32(n int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / testRate))
	}
	return out
}

func energy(s []float32) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return sum
}

func TestDesignKernel_Validation(t *testing.T) {
	cases := []struct {
		name string
		taps int
		lo   float64
		hi   float64
	}{
		{"even taps", 1024, 60, 1200},
		{"too few taps", 1, 60, 1200},
		{"negative low", 1023, -1, 1200},
		{"inverted band", 1023, 1200, 60},
		{"above nyquist", 1023, 60, 30000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DesignKernel(tc.taps, tc.lo, tc.hi, testRate)
			assert.ErrorIs(t, err, ErrInvalidBand)
		})
	}
}

func TestDesignKernel_Symmetry(t *testing.T) {
	kernel, err := DesignKernel(DefaultTaps, 60, 1200, testRate)
	require.NoError(t, err)
	require.Len(t, kernel, DefaultTaps)

	// Linear phase requires an exactly symmetric kernel.
	for i := 0; i < len(kernel)/2; i++ {
		assert.InDelta(t, kernel[i], kernel[len(kernel)-1-i], 1e-15, "tap %d", i)
	}
}

func TestDesignKernel_CenterGain(t *testing.T) {
	kernel, err := DesignKernel(DefaultTaps, 60, 1200, testRate)
	require.NoError(t, err)

	// Unit response at the band center, tiny response deep in the stopband.
	assert.InDelta(t, 1.0, frequencyGain(kernel, (60+1200)/2/testRate), 1e-9)
	assert.Less(t, frequencyGain(kernel, 8000/testRate), 0.01)
	assert.Less(t, frequencyGain(kernel, 20000/testRate), 0.01)
}

// frequencyGain evaluates the magnitude response of a symmetric kernel at
// the normalized frequency fc.
func frequencyGain(kernel []float64, fc float64) float64 {
	center := float64(len(kernel)-1) / 2
	gain := 0.0
	for n, h := range kernel {
		gain += h * math.Cos(2*math.Pi*fc*(float64(n)-center))
	}
	return math.Abs(gain)
}

func TestBandpass_PassesInBandTone(t *testing.T) {
	const blockLen = 4096
	bp, err := New(60, 1200, testRate, blockLen)
	require.NoError(t, err)

	src := sine32(blockLen, 400)
	dst := make([]float32, blockLen)
	bp.Process(dst, src)

	// Compare settled halves: an in-band tone keeps most of its energy.
	ratio := energy(dst[blockLen/2:]) / energy(src[blockLen/2:])
	assert.Greater(t, ratio, 0.8, "in-band tone attenuated")
}

func TestBandpass_RejectsOutOfBandTone(t *testing.T) {
	const blockLen = 4096
	bp, err := New(60, 1200, testRate, blockLen)
	require.NoError(t, err)

	src := sine32(blockLen, 6000)
	dst := make([]float32, blockLen)
	bp.Process(dst, src)

	ratio := energy(dst[blockLen/2:]) / energy(src[blockLen/2:])
	assert.Less(t, ratio, 0.001, "out-of-band tone leaked through")
}

// TestBandpass_DelayIsConstant verifies the group delay does not depend on
// the content: two different in-band tones shift by the same amount, which
// is what lets the delay cancel out of the correlation search.
func TestBandpass_DelayIsConstant(t *testing.T) {
	const blockLen = 4096
	bp, err := New(60, 1200, testRate, blockLen)
	require.NoError(t, err)

	delay := (DefaultTaps - 1) / 2

	for _, freq := range []float64{400.0, 800.0} {
		src := sine32(blockLen, freq)
		dst := make([]float32, blockLen)
		bp.Process(dst, src)

		// Output at i matches input at i-delay once the filter has settled.
		for i := blockLen / 2; i < blockLen/2+256; i++ {
			assert.InDelta(t, src[i-delay], dst[i], 0.02,
				"%g Hz sample %d", freq, i)
		}
	}
}

func TestBandpass_RejectsWrongBlockLength(t *testing.T) {
	bp, err := New(60, 1200, testRate, 1024)
	require.NoError(t, err)

	src := make([]float32, 512)
	dst := make([]float32, 1024)
	for i := range dst {
		dst[i] = 42
	}
	bp.Process(dst, src)
	assert.Equal(t, float32(42), dst[0], "mismatched block must be a no-op")
}

func TestNew_InvalidBlockLength(t *testing.T) {
	_, err := New(60, 1200, testRate, 0)
	assert.ErrorIs(t, err, ErrInvalidBand)
}
