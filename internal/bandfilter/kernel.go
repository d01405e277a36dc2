// Package bandfilter implements the FFT band-pass used for
// frequency-selective correlation: a Kaiser-windowed sinc FIR kernel
// applied by overlap-save convolution. Correlation runs on the filtered
// copy while the full-bandwidth samples remain available for display.
package bandfilter

import (
	"errors"
	"fmt"
	"math"

	"github.com/jotoft/loopback-visualizer-sub000/internal/mathutil"
)

// ErrInvalidBand indicates band edges outside (0, nyquist) or low >= high.
var ErrInvalidBand = errors.New("invalid band-pass specification")

const (
	// DefaultTaps is the default kernel length. Odd length keeps the
	// filter linear-phase with an integer group delay; 1023 taps give a
	// transition band narrow enough to isolate a 60 Hz edge at 48 kHz.
	DefaultTaps = 1023

	// kaiserBeta trades stopband attenuation against transition width.
	// 7.0 is roughly 70 dB of stopband rejection.
	kaiserBeta = 7.0

	minTaps = 3
)

// DesignKernel returns a linear-phase band-pass FIR kernel of the given odd
// length, passing [lowHz, highHz] at the given sample rate. The kernel is
// normalized to unit gain at the band center.
func DesignKernel(taps int, lowHz, highHz, sampleRate float64) ([]float64, error) {
	if taps < minTaps || taps%2 == 0 {
		return nil, fmt.Errorf("%w: taps must be odd and >= %d, got %d", ErrInvalidBand, minTaps, taps)
	}

	nyquist := sampleRate / 2
	if lowHz < 0 || highHz <= lowHz || highHz > nyquist {
		return nil, fmt.Errorf("%w: [%g, %g] Hz at rate %g", ErrInvalidBand, lowHz, highHz, sampleRate)
	}

	// Normalized frequencies (cycles per sample).
	fl := lowHz / sampleRate
	fh := highHz / sampleRate
	center := float64(taps-1) / 2

	kernel := make([]float64, taps)
	i0Beta := mathutil.BesselI0(kaiserBeta)

	for n := range kernel {
		m := float64(n) - center

		// Ideal band-pass = high-cutoff sinc minus low-cutoff sinc.
		ideal := 2*fh*sinc(2*fh*m) - 2*fl*sinc(2*fl*m)

		// Kaiser window.
		r := m / center
		window := mathutil.BesselI0(kaiserBeta*math.Sqrt(1-r*r)) / i0Beta

		kernel[n] = ideal * window
	}

	normalizeCenterGain(kernel, (fl+fh)/2, center)

	return kernel, nil
}

// sinc is the normalized sinc function sin(πx)/(πx).
func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// normalizeCenterGain scales the kernel so its frequency response at the
// normalized frequency fc has unit magnitude. For a symmetric kernel the
// magnitude is the cosine-weighted coefficient sum.
func normalizeCenterGain(kernel []float64, fc, center float64) {
	gain := 0.0
	for n, h := range kernel {
		gain += h * math.Cos(2*math.Pi*fc*(float64(n)-center))
	}
	if gain == 0 {
		return
	}

	inv := 1 / gain
	for n := range kernel {
		kernel[n] *= inv
	}
}
