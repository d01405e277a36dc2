package bandfilter

import (
	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// Kernels shorter than this convolve faster directly with SIMD than
	// through the FFT path.
	minKernelForFFT = 400

	// Starting FFT block size; grown to fit 2x the kernel.
	baseFFTSize = 512

	// A real FFT of size N has N/2+1 unique bins (Hermitian symmetry).
	hermitianDivisor = 2
)

// convolver computes valid convolution of a signal with a fixed kernel,
// choosing overlap-save FFT convolution for long kernels and direct SIMD
// convolution otherwise. All buffers are pre-allocated; Apply does not
// allocate.
type convolver struct {
	kernel []float64

	// FFT path state; nil fft means the direct path is used.
	fft       *fourier.FFT
	fftSize   int
	blockSize int // valid output samples per block = fftSize - len(kernel) + 1
	kernelFFT []complex128
	scale     float64 // 1/fftSize; gonum's inverse transform is unnormalized

	signalBlock []float64
	signalFFT   []complex128
	productFFT  []complex128
	ifftResult  []float64
}

// newConvolver builds a convolver for the kernel.
func newConvolver(kernel []float64) *convolver {
	c := &convolver{kernel: kernel}
	if len(kernel) < minKernelForFFT {
		return c
	}

	fftSize := baseFFTSize
	for fftSize < 2*len(kernel) {
		fftSize *= 2
	}

	// Overlap-save: each block of fftSize input samples yields
	// fftSize-len(kernel)+1 valid outputs; the first len(kernel)-1 are
	// circular-wrap artifacts and are discarded.
	c.fft = fourier.NewFFT(fftSize)
	c.fftSize = fftSize
	c.blockSize = fftSize - len(kernel) + 1
	c.scale = 1.0 / float64(fftSize)

	// Precompute the kernel spectrum once, reversed so the circular
	// convolution matches the valid (correlation-style) indexing.
	padded := make([]float64, fftSize)
	for i := range kernel {
		padded[i] = kernel[len(kernel)-1-i]
	}
	c.kernelFFT = c.fft.Coefficients(nil, padded)

	bins := fftSize/hermitianDivisor + 1
	c.signalBlock = make([]float64, fftSize)
	c.signalFFT = make([]complex128, bins)
	c.productFFT = make([]complex128, bins)
	c.ifftResult = make([]float64, fftSize)

	return c
}

// Apply writes the valid convolution of signal with the kernel into dst.
// dst must have length >= len(signal) - len(kernel) + 1.
func (c *convolver) Apply(dst, signal []float64) {
	outputLen := len(signal) - len(c.kernel) + 1
	if outputLen <= 0 || len(dst) < outputLen {
		return
	}

	if c.fft == nil {
		f64.ConvolveValid(dst, signal, c.kernel)
		return
	}

	overlap := len(c.kernel) - 1
	outIdx := 0

	for outIdx < outputLen {
		for i := range c.signalBlock {
			c.signalBlock[i] = 0
		}

		copyLen := c.fftSize
		if outIdx+copyLen > len(signal) {
			copyLen = len(signal) - outIdx
		}
		copy(c.signalBlock, signal[outIdx:outIdx+copyLen])

		c.signalFFT = c.fft.Coefficients(c.signalFFT, c.signalBlock)
		c128.Mul(c.productFFT, c.signalFFT, c.kernelFFT)
		c.ifftResult = c.fft.Sequence(c.ifftResult, c.productFFT)
		f64.Scale(c.ifftResult, c.ifftResult, c.scale)

		valid := c.blockSize
		if outIdx+valid > outputLen {
			valid = outputLen - outIdx
		}
		copy(dst[outIdx:outIdx+valid], c.ifftResult[overlap:overlap+valid])

		outIdx += valid
	}
}
