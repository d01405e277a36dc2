package phasescope

import "math"

// biquad is a second-order IIR section in Direct Form I. Coefficients are
// normalized by a0 at design time. The 2-sample input/output history
// survives coefficient changes; only topology changes or an explicit reset
// clear it.
type biquad struct {
	b0, b1, b2 float32
	a1, a2     float32

	x1, x2 float32
	y1, y2 float32
}

func (f *biquad) setCoefficients(b0, b1, b2, a0, a1, a2 float64) {
	inv := 1.0 / a0
	f.b0 = float32(b0 * inv)
	f.b1 = float32(b1 * inv)
	f.b2 = float32(b2 * inv)
	f.a1 = float32(a1 * inv)
	f.a2 = float32(a2 * inv)
}

// setLowpass configures Butterworth-style low-pass coefficients (RBJ form).
func (f *biquad) setLowpass(sampleRate, cutoff, q float64) {
	omega := 2 * math.Pi * cutoff / sampleRate
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	alpha := sinW / (2 * q)

	f.setCoefficients(
		(1-cosW)/2, 1-cosW, (1-cosW)/2,
		1+alpha, -2*cosW, 1-alpha)
}

// setHighpass configures Butterworth-style high-pass coefficients.
func (f *biquad) setHighpass(sampleRate, cutoff, q float64) {
	omega := 2 * math.Pi * cutoff / sampleRate
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	alpha := sinW / (2 * q)

	f.setCoefficients(
		(1+cosW)/2, -(1 + cosW), (1+cosW)/2,
		1+alpha, -2*cosW, 1-alpha)
}

// setBandpass configures a constant-skirt band-pass; the sibilance stage
// uses Q = center/bandwidth.
func (f *biquad) setBandpass(sampleRate, center, q float64) {
	omega := 2 * math.Pi * center / sampleRate
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	alpha := sinW / (2 * q)

	f.setCoefficients(
		alpha, 0, -alpha,
		1+alpha, -2*cosW, 1-alpha)
}

func (f *biquad) processSample(x float32) float32 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2

	f.x2 = f.x1
	f.x1 = x
	f.y2 = f.y1
	f.y1 = y

	return y
}

func (f *biquad) resetState() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// FilterChain conditions a sample block before correlation: high-pass, then
// low-pass, then sibilance envelope-follow-and-attenuate, then a soft clip
// bounding the output. Processing is in place and allocation-free; the chain
// belongs to the display/analysis goroutine.
type FilterChain struct {
	cfg FilterConfig

	highPass biquad
	lowPass  biquad
	sibBand  biquad
	sibEnv   float32
	attackC  float32
	releaseC float32
}

// NewFilterChain creates a chain from the configuration.
func NewFilterChain(cfg FilterConfig) (*FilterChain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &FilterChain{cfg: cfg}
	c.designAll()
	return c, nil
}

// Process applies the enabled stages to samples in place.
func (c *FilterChain) Process(samples []float32) {
	hp := c.cfg.HighPass.Enabled
	lp := c.cfg.LowPass.Enabled
	sib := c.cfg.Sibilance.Enabled
	threshold := c.cfg.Sibilance.Threshold
	ratio := c.cfg.Sibilance.Ratio

	for i, x := range samples {
		if hp {
			x = c.highPass.processSample(x)
		}
		if lp {
			x = c.lowPass.processSample(x)
		}

		if sib {
			band := c.sibBand.processSample(x)
			mag := band
			if mag < 0 {
				mag = -mag
			}

			// Asymmetric one-pole follower: fast attack, slow release.
			coef := c.releaseC
			if mag > c.sibEnv {
				coef = c.attackC
			}
			c.sibEnv = coef*c.sibEnv + (1-coef)*mag

			if c.sibEnv > threshold {
				gain := 1 - (c.sibEnv-threshold)*ratio
				if gain < minSibilanceGain {
					gain = minSibilanceGain
				}
				x *= gain
			}
		}

		samples[i] = softClip(x)
	}
}

// SetHighPass updates the high-pass stage. Coefficients are recomputed
// without touching the sample history.
func (c *FilterChain) SetHighPass(cfg FilterStageConfig) {
	c.cfg.HighPass = cfg
	if cfg.Enabled {
		c.highPass.setHighpass(c.cfg.SampleRate, cfg.Cutoff, cfg.Q)
	}
}

// SetLowPass updates the low-pass stage without touching sample history.
func (c *FilterChain) SetLowPass(cfg FilterStageConfig) {
	c.cfg.LowPass = cfg
	if cfg.Enabled {
		c.lowPass.setLowpass(c.cfg.SampleRate, cfg.Cutoff, cfg.Q)
	}
}

// SetSibilance updates the sibilance stage without touching sample history.
// The detection band-pass Q is Center/Bandwidth.
func (c *FilterChain) SetSibilance(cfg SibilanceConfig) {
	c.cfg.Sibilance = cfg
	if cfg.Enabled {
		c.sibBand.setBandpass(c.cfg.SampleRate, cfg.Center, cfg.Center/cfg.Bandwidth)
	}
}

// SetSampleRate redesigns every stage for the new rate, preserving history.
func (c *FilterChain) SetSampleRate(rate float64) {
	c.cfg.SampleRate = rate
	c.designAll()
}

// Reset zeroes all stage histories and the sibilance envelope.
func (c *FilterChain) Reset() {
	c.highPass.resetState()
	c.lowPass.resetState()
	c.sibBand.resetState()
	c.sibEnv = 0
}

// Config returns the active configuration.
func (c *FilterChain) Config() FilterConfig {
	return c.cfg
}

func (c *FilterChain) designAll() {
	rate := c.cfg.SampleRate

	if c.cfg.HighPass.Enabled {
		c.highPass.setHighpass(rate, c.cfg.HighPass.Cutoff, c.cfg.HighPass.Q)
	}
	if c.cfg.LowPass.Enabled {
		c.lowPass.setLowpass(rate, c.cfg.LowPass.Cutoff, c.cfg.LowPass.Q)
	}
	if c.cfg.Sibilance.Enabled {
		c.sibBand.setBandpass(rate, c.cfg.Sibilance.Center,
			c.cfg.Sibilance.Center/c.cfg.Sibilance.Bandwidth)
	}

	c.attackC = envelopeCoefficient(sibilanceAttackSeconds, rate)
	c.releaseC = envelopeCoefficient(sibilanceReleaseSeconds, rate)
}

// envelopeCoefficient converts a time constant to a one-pole smoothing
// coefficient at the given rate.
func envelopeCoefficient(seconds, sampleRate float64) float32 {
	return float32(math.Exp(-1.0 / (seconds * sampleRate)))
}

// softClip bounds samples that escape [-1, 1] with an exponential knee:
// x > 1 maps to 1-e^(-x), symmetric for negative input.
func softClip(x float32) float32 {
	switch {
	case x > 1:
		return 1 - float32(math.Exp(float64(-x)))
	case x < -1:
		return -1 + float32(math.Exp(float64(x)))
	default:
		return x
	}
}
