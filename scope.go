package phasescope

import "github.com/jotoft/loopback-visualizer-sub000/internal/device"

// drainChunk is the granularity at which ProcessFrame moves samples from
// the transport ring into the analysis buffer.
const drainChunk = 4096

// Scope wires the full pipeline together: capture engine, optional filter
// chain and phase-lock analyzer. A renderer only needs ProcessFrame once
// per display frame plus CopyWindow on the analyzer. The components remain
// individually accessible for callers that want to drive them directly.
type Scope struct {
	cfg      Config
	capture  *CaptureEngine
	filter   *FilterChain
	analyzer *PhaseLockAnalyzer

	drain []float32
}

// NewScope builds a pipeline capturing from the host's default input device.
func NewScope(cfg Config) (*Scope, error) {
	source := device.NewPortAudioSource(device.CaptureParams{
		DeviceIndex:    device.UseDefaultDevice,
		SampleRate:     cfg.Capture.SampleRate,
		Channels:       cfg.Capture.Channels,
		FramesPerBlock: cfg.Capture.FramesPerBlock,
	})
	return NewScopeWithSource(cfg, source)
}

// NewDeviceScope builds a pipeline capturing from the device at the given
// index (see the phasescope CLI's devices command for indices).
func NewDeviceScope(cfg Config, deviceIndex int) (*Scope, error) {
	source := device.NewPortAudioSource(device.CaptureParams{
		DeviceIndex:    deviceIndex,
		SampleRate:     cfg.Capture.SampleRate,
		Channels:       cfg.Capture.Channels,
		FramesPerBlock: cfg.Capture.FramesPerBlock,
	})
	return NewScopeWithSource(cfg, source)
}

// NewSynthScope builds a pipeline over a paced synthetic sine source, which
// stands in for a loopback device in tests and demos.
func NewSynthScope(cfg Config, frequencyHz float64, amplitude float32) (*Scope, error) {
	source := device.NewSynthSource(device.SynthParams{
		SampleRate:     cfg.Capture.SampleRate,
		Channels:       cfg.Capture.Channels,
		FramesPerBlock: cfg.Capture.FramesPerBlock,
		Frequency:      frequencyHz,
		Amplitude:      amplitude,
		Paced:          true,
	})
	return NewScopeWithSource(cfg, source)
}

// NewScopeWithSource builds a pipeline over a caller-supplied source.
func NewScopeWithSource(cfg Config, source SampleSource) (*Scope, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	capture, err := NewCaptureEngine(cfg.Capture, source)
	if err != nil {
		return nil, err
	}

	var filter *FilterChain
	if cfg.EnableFilter {
		filter, err = NewFilterChain(cfg.Filter)
		if err != nil {
			return nil, err
		}
	}

	analyzer, err := NewPhaseLockAnalyzer(cfg.Analyzer)
	if err != nil {
		return nil, err
	}

	return &Scope{
		cfg:      cfg,
		capture:  capture,
		filter:   filter,
		analyzer: analyzer,
		drain:    make([]float32, drainChunk),
	}, nil
}

// Start begins capture.
func (s *Scope) Start() error {
	return s.capture.Start()
}

// Stop ends capture and joins the capture goroutine.
func (s *Scope) Stop() {
	s.capture.Stop()
}

// ProcessFrame drains newly captured audio through the filter chain into
// the analyzer and runs one analysis frame. Call once per display frame
// from the display goroutine.
func (s *Scope) ProcessFrame(locked bool) AnalyzerState {
	for {
		avail := s.capture.AvailableSamples()
		if avail == 0 {
			break
		}
		if avail > len(s.drain) {
			avail = len(s.drain)
		}

		chunk := s.drain[:avail]
		n := s.capture.ReadSamples(chunk)
		if n == 0 {
			break
		}
		chunk = chunk[:n]

		if s.filter != nil {
			s.filter.Process(chunk)
		}
		s.analyzer.AddSamples(chunk)
	}

	return s.analyzer.Analyze(locked)
}

// Capture returns the capture engine.
func (s *Scope) Capture() *CaptureEngine { return s.capture }

// Analyzer returns the phase-lock analyzer.
func (s *Scope) Analyzer() *PhaseLockAnalyzer { return s.analyzer }

// Filter returns the filter chain, or nil when filtering is disabled.
func (s *Scope) Filter() *FilterChain { return s.filter }

// Config returns the pipeline configuration.
func (s *Scope) Config() Config { return s.cfg }
