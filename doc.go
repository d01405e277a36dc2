// Package phasescope provides phase-stabilized live audio capture for
// oscilloscope-style waveform display in pure Go.
//
// A naively triggered waveform jitters from frame to frame because the
// captured audio is not periodic-aligned with the display window. This
// library produces, every display frame, a stable "locked" window of samples
// by continuously cross-correlating recent audio against a reference
// waveform template and re-synchronizing a read cursor to the best match.
//
// # Features
//
//   - Lock-free single-producer/single-consumer sample ring buffer bridging
//     the audio-device goroutine and the display goroutine
//   - Capture engine with joinable goroutine lifecycle, stereo downmix and
//     overrun/underrun/throughput statistics
//   - Cross-correlation phase-lock analyzer with accumulator and EMA
//     reference blend policies and wrap-aware phase smoothing
//   - Biquad pre-filter chain (high-pass, low-pass, sibilance reduction)
//     with soft-clip output bounding
//   - Optional frequency-selective correlation through an FFT band-pass
//   - SIMD-accelerated correlation via github.com/tphakala/simd
//
// # Quick Start
//
// For live capture with the default input device:
//
//	scope, err := phasescope.NewScope(phasescope.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := scope.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer scope.Stop()
//
//	window := make([]float32, scope.Config().Analyzer.DisplaySamples)
//	for eachDisplayFrame {
//	    state := scope.ProcessFrame(true)
//	    scope.Analyzer().CopyWindow(window, state.ReadPosition)
//	    render(window, state.BestCorrelation, state.HasLock)
//	}
//
// The components can also be driven individually; see [CaptureEngine],
// [FilterChain] and [PhaseLockAnalyzer].
//
// # Concurrency Model
//
// Exactly two execution contexts are involved: the capture goroutine (the
// producer side of [SampleRingBuffer], owned by [CaptureEngine]) and the
// display/analysis goroutine (the consumer side plus the entirety of
// [PhaseLockAnalyzer] and [FilterChain]). No mutex is used on the hot paths;
// the only synchronization is the pair of atomic ring indices and the atomic
// statistics counters. The capture goroutine never allocates after Start and
// never calls into the analyzer. [CaptureEngine.Stop] is the single
// cancellation primitive: cooperative, polled once per device block, and
// blocking until the goroutine has exited.
//
// # Sizing Precondition
//
// The analyzer's buffer must satisfy
//
//	PhaseBufferSize >= DisplaySamples + SearchRange + CorrelationWindowSize
//
// or the correlation search would read samples already overwritten by newer
// audio. [AnalyzerConfig.Validate] enforces this at construction time.
package phasescope
