package phasescope

import (
	"errors"
	"fmt"
)

// ReferenceMode selects how accepted matches are folded into the reference
// template the analyzer tracks.
type ReferenceMode int

const (
	// ReferenceAccumulator maintains a true running mean of accepted matches
	// and resets after AccumulatorResetCount matches, periodically starting
	// fresh. Tracks non-stationary signals quickly at the cost of an
	// occasional visible re-seed.
	ReferenceAccumulator ReferenceMode = iota

	// ReferenceEMA blends each accepted match into the template with a fixed
	// exponential weight and never resets. Smoother but laggier adaptation.
	ReferenceEMA
)

// String returns the mode name for logs and CLI output.
func (m ReferenceMode) String() string {
	switch m {
	case ReferenceAccumulator:
		return "accumulator"
	case ReferenceEMA:
		return "ema"
	default:
		return fmt.Sprintf("ReferenceMode(%d)", int(m))
	}
}

// Common errors returned by constructors and Validate methods.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid phasescope configuration")

	// ErrNotPowerOfTwo indicates a buffer capacity that is not a power of two.
	ErrNotPowerOfTwo = errors.New("capacity must be a power of two")
)

// Capture error taxonomy. All capture failures surface through
// [CaptureEngine.Start] or the error callback, wrapped around one of these
// sentinels so callers can classify them with errors.Is.
var (
	// ErrDeviceNotFound indicates the requested audio device does not exist.
	ErrDeviceNotFound = errors.New("audio device not found")

	// ErrInitializationFailed indicates the device or host API could not be
	// initialized or the stream could not be opened.
	ErrInitializationFailed = errors.New("audio initialization failed")

	// ErrReadFailed indicates a mid-stream device read failure. The capture
	// goroutine stops gracefully after reporting it.
	ErrReadFailed = errors.New("audio read failed")

	// ErrUnsupportedFormat indicates the device cannot deliver the requested
	// sample rate or channel layout.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrSystem indicates an unclassified host error.
	ErrSystem = errors.New("audio system error")
)

// CaptureConfig configures the capture engine.
type CaptureConfig struct {
	// SampleRate is the capture rate in Hz.
	SampleRate float64

	// Channels is the number of device channels to open (1 or 2).
	Channels int

	// Downmix averages stereo frames to mono before they enter the ring.
	// When false, stereo samples are pushed interleaved. Ignored for mono.
	Downmix bool

	// FramesPerBlock is the number of frames pulled per blocking device
	// read. Smaller blocks lower latency, larger blocks lower overhead.
	FramesPerBlock int

	// RingCapacity is the transport ring size in samples. Must be a power
	// of two; one slot is always kept empty, so at most RingCapacity-1
	// samples are buffered.
	RingCapacity int

	// OnError, when non-nil, is invoked from the capture goroutine for
	// mid-stream failures. It must not block; the goroutine exits right
	// after the callback returns.
	OnError func(error)
}

// AnalyzerConfig configures the phase-lock analyzer.
type AnalyzerConfig struct {
	// DisplaySamples is the window length handed to the renderer.
	DisplaySamples int

	// CorrelationWindowSize is the reference template length in samples.
	CorrelationWindowSize int

	// SearchRange is how far back the correlation search scans, in samples.
	SearchRange int

	// PhaseBufferSize is the analysis ring capacity. Must satisfy
	// PhaseBufferSize >= DisplaySamples + SearchRange + CorrelationWindowSize.
	PhaseBufferSize int

	// CorrelationThreshold is the minimum normalized correlation for a match
	// to be accepted, in (0, 1).
	CorrelationThreshold float32

	// PhaseSmoothing controls the first-order smoothing of the read offset,
	// in [0, 1). 0 snaps directly to the match; values near 1 glide slowly.
	PhaseSmoothing float32

	// Mode selects the reference blend policy.
	Mode ReferenceMode

	// AccumulatorResetCount is the number of accepted matches after which an
	// accumulator reference starts fresh. Ignored in EMA mode.
	AccumulatorResetCount int

	// EMAAlpha is the blend weight of a new match in EMA mode, in (0, 1).
	EMAAlpha float32

	// UseFrequencyFilter enables frequency-selective correlation: matching
	// runs on a band-limited copy while the display window stays full-band.
	UseFrequencyFilter bool

	// BandLowHz and BandHighHz bound the correlation band when
	// UseFrequencyFilter is set.
	BandLowHz  float64
	BandHighHz float64

	// SampleRate is required when UseFrequencyFilter is set, to map the band
	// edges to normalized frequencies.
	SampleRate float64
}

// FilterStageConfig configures one biquad stage of the chain.
type FilterStageConfig struct {
	// Enabled switches the stage in or out of the cascade.
	Enabled bool

	// Cutoff is the stage cutoff (high-/low-pass) or center (sibilance)
	// frequency in Hz.
	Cutoff float64

	// Q is the stage resonance. Ignored by the sibilance stage, which
	// derives Q from Cutoff/Bandwidth.
	Q float64
}

// SibilanceConfig configures the sibilance-detection stage.
type SibilanceConfig struct {
	Enabled bool

	// Center and Bandwidth define the detection band in Hz; the band-pass
	// Q is Center/Bandwidth.
	Center    float64
	Bandwidth float64

	// Threshold is the envelope level above which gain reduction engages.
	Threshold float32

	// Ratio scales how strongly gain is reduced per unit of envelope excess.
	Ratio float32
}

// FilterConfig configures the pre-correlation filter chain.
type FilterConfig struct {
	SampleRate float64
	HighPass   FilterStageConfig
	LowPass    FilterStageConfig
	Sibilance  SibilanceConfig
}

// Config aggregates the full pipeline configuration.
type Config struct {
	Capture  CaptureConfig
	Filter   FilterConfig
	Analyzer AnalyzerConfig

	// EnableFilter runs the filter chain between capture and analysis.
	EnableFilter bool
}

// DefaultCaptureConfig returns a mono 48 kHz capture configuration.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:     defaultSampleRate,
		Channels:       defaultCaptureChannels,
		Downmix:        true,
		FramesPerBlock: defaultFramesPerBlock,
		RingCapacity:   defaultRingCapacity,
	}
}

// DefaultAnalyzerConfig returns an analyzer configuration suitable for
// tracking signals with a period up to the correlation window.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		DisplaySamples:        defaultDisplaySamples,
		CorrelationWindowSize: defaultCorrelationWindow,
		SearchRange:           defaultSearchRange,
		PhaseBufferSize:       defaultPhaseBufferSize,
		CorrelationThreshold:  defaultCorrelationThreshold,
		PhaseSmoothing:        defaultPhaseSmoothing,
		Mode:                  ReferenceAccumulator,
		AccumulatorResetCount: defaultAccumulatorResets,
		EMAAlpha:              defaultEMAAlpha,
		BandLowHz:             defaultBandLowHz,
		BandHighHz:            defaultBandHighHz,
		SampleRate:            defaultSampleRate,
	}
}

// DefaultFilterConfig returns the filter chain defaults: rumble high-pass
// and low-pass enabled, sibilance reduction disabled.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		SampleRate: defaultSampleRate,
		HighPass: FilterStageConfig{
			Enabled: true,
			Cutoff:  defaultHighPassCutoff,
			Q:       defaultFilterQ,
		},
		LowPass: FilterStageConfig{
			Enabled: true,
			Cutoff:  defaultLowPassCutoff,
			Q:       defaultFilterQ,
		},
		Sibilance: SibilanceConfig{
			Enabled:   false,
			Center:    defaultSibilanceCenter,
			Bandwidth: defaultSibilanceBandwidth,
			Threshold: defaultSibilanceThreshold,
			Ratio:     defaultSibilanceRatio,
		},
	}
}

// DefaultConfig returns the full default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Capture:      DefaultCaptureConfig(),
		Filter:       DefaultFilterConfig(),
		Analyzer:     DefaultAnalyzerConfig(),
		EnableFilter: true,
	}
}

// Validate checks the capture configuration.
func (c *CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	}

	if c.Channels < 1 || c.Channels > maxCaptureChannels {
		return fmt.Errorf("%w: channels must be 1 or 2", ErrInvalidConfig)
	}

	if c.FramesPerBlock < 1 {
		return fmt.Errorf("%w: frames per block must be at least 1", ErrInvalidConfig)
	}

	if c.RingCapacity < 2 || !isPowerOfTwo(c.RingCapacity) {
		return fmt.Errorf("%w: ring capacity %d", ErrNotPowerOfTwo, c.RingCapacity)
	}

	return nil
}

// Validate checks the analyzer configuration, including the buffer sizing
// precondition that keeps the correlation search off stale wrap-around data.
func (c *AnalyzerConfig) Validate() error {
	if c.DisplaySamples < 1 || c.CorrelationWindowSize < 1 || c.SearchRange < 1 {
		return fmt.Errorf("%w: window sizes must be positive", ErrInvalidConfig)
	}

	if c.PhaseBufferSize < c.DisplaySamples+c.SearchRange+c.CorrelationWindowSize {
		return fmt.Errorf("%w: phase buffer %d < display %d + search %d + window %d",
			ErrInvalidConfig, c.PhaseBufferSize,
			c.DisplaySamples, c.SearchRange, c.CorrelationWindowSize)
	}

	if c.CorrelationThreshold <= 0 || c.CorrelationThreshold >= 1 {
		return fmt.Errorf("%w: correlation threshold must be in (0, 1)", ErrInvalidConfig)
	}

	if c.PhaseSmoothing < 0 || c.PhaseSmoothing >= 1 {
		return fmt.Errorf("%w: phase smoothing must be in [0, 1)", ErrInvalidConfig)
	}

	switch c.Mode {
	case ReferenceAccumulator:
		if c.AccumulatorResetCount < 1 {
			return fmt.Errorf("%w: accumulator reset count must be at least 1", ErrInvalidConfig)
		}
	case ReferenceEMA:
		if c.EMAAlpha <= 0 || c.EMAAlpha >= 1 {
			return fmt.Errorf("%w: EMA alpha must be in (0, 1)", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown reference mode %d", ErrInvalidConfig, int(c.Mode))
	}

	if c.UseFrequencyFilter {
		if c.SampleRate <= 0 {
			return fmt.Errorf("%w: sample rate required for frequency filter", ErrInvalidConfig)
		}
		if c.BandLowHz < 0 || c.BandHighHz <= c.BandLowHz || c.BandHighHz > c.SampleRate/2 {
			return fmt.Errorf("%w: band [%g, %g] Hz invalid at %g Hz",
				ErrInvalidConfig, c.BandLowHz, c.BandHighHz, c.SampleRate)
		}
	}

	return nil
}

// Validate checks the filter chain configuration.
func (c *FilterConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	}

	nyquist := c.SampleRate / 2

	for _, stage := range []struct {
		name string
		cfg  FilterStageConfig
	}{
		{"high-pass", c.HighPass},
		{"low-pass", c.LowPass},
	} {
		if !stage.cfg.Enabled {
			continue
		}
		if stage.cfg.Cutoff <= 0 || stage.cfg.Cutoff >= nyquist {
			return fmt.Errorf("%w: %s cutoff %g Hz outside (0, %g)",
				ErrInvalidConfig, stage.name, stage.cfg.Cutoff, nyquist)
		}
		if stage.cfg.Q <= 0 {
			return fmt.Errorf("%w: %s Q must be positive", ErrInvalidConfig, stage.name)
		}
	}

	if c.Sibilance.Enabled {
		if c.Sibilance.Center <= 0 || c.Sibilance.Center >= nyquist {
			return fmt.Errorf("%w: sibilance center %g Hz outside (0, %g)",
				ErrInvalidConfig, c.Sibilance.Center, nyquist)
		}
		if c.Sibilance.Bandwidth <= 0 {
			return fmt.Errorf("%w: sibilance bandwidth must be positive", ErrInvalidConfig)
		}
		if c.Sibilance.Threshold <= 0 || c.Sibilance.Ratio <= 0 {
			return fmt.Errorf("%w: sibilance threshold and ratio must be positive", ErrInvalidConfig)
		}
	}

	return nil
}

// Validate checks the aggregate configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if c.EnableFilter {
		if err := c.Filter.Validate(); err != nil {
			return err
		}
	}
	return c.Analyzer.Validate()
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
