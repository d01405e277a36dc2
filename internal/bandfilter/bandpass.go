package bandfilter

import "fmt"

// Bandpass filters fixed-length float32 blocks through the band-pass
// kernel. Each call filters a complete block from silence, so the output
// carries the kernel's constant group delay but no inter-block state; the
// correlation search sees the same delay on the reference and every
// candidate, which cancels out.
type Bandpass struct {
	conv     *convolver
	taps     int
	blockLen int

	padded []float64 // blockLen + taps - 1, leading zeros as warm-up history
	outF64 []float64
}

// New builds a band-pass for blocks of exactly blockLen samples, passing
// [lowHz, highHz] at the given sample rate.
func New(lowHz, highHz, sampleRate float64, blockLen int) (*Bandpass, error) {
	if blockLen < 1 {
		return nil, fmt.Errorf("%w: block length %d", ErrInvalidBand, blockLen)
	}

	kernel, err := DesignKernel(DefaultTaps, lowHz, highHz, sampleRate)
	if err != nil {
		return nil, err
	}

	return &Bandpass{
		conv:     newConvolver(kernel),
		taps:     len(kernel),
		blockLen: blockLen,
		padded:   make([]float64, blockLen+len(kernel)-1),
		outF64:   make([]float64, blockLen),
	}, nil
}

// Process filters src into dst. Both must have exactly the configured block
// length. dst and src may not alias. No allocation.
func (b *Bandpass) Process(dst, src []float32) {
	if len(src) != b.blockLen || len(dst) != b.blockLen {
		return
	}

	// Leading taps-1 zeros stand in for history; the valid convolution of
	// the padded signal then has exactly blockLen outputs.
	warm := b.taps - 1
	for i := 0; i < warm; i++ {
		b.padded[i] = 0
	}
	for i, s := range src {
		b.padded[warm+i] = float64(s)
	}

	b.conv.Apply(b.outF64, b.padded)

	for i, s := range b.outF64 {
		dst[i] = float32(s)
	}
}
