package phasescope

// Capture defaults
const (
	defaultSampleRate      = 48000.0 // Default capture sample rate in Hz
	defaultFramesPerBlock  = 512     // Device frames pulled per blocking read
	defaultRingCapacity    = 16384   // Transport ring capacity in samples (power of two)
	defaultCaptureChannels = 1       // Mono capture by default
	maxCaptureChannels     = 2       // Mono or stereo only
)

// Analyzer defaults
const (
	defaultDisplaySamples    = 1024 // Samples handed to the renderer per frame
	defaultCorrelationWindow = 1024 // Reference template length in samples
	defaultSearchRange       = 2048 // Lookback scanned for the best match
	defaultPhaseBufferSize   = 8192 // Analysis ring capacity in samples

	defaultCorrelationThreshold = 0.6  // Minimum correlation to accept a match
	defaultPhaseSmoothing       = 0.8  // First-order smoothing of the read offset
	defaultAccumulatorResets    = 64   // Matches folded in before a fresh start
	defaultEMAAlpha             = 0.08 // EMA blend factor for new matches
)

// Correlation search tuning
const (
	// coarseSearchStride is the offset stride of the coarse scan. A fixed
	// stride of 4 keeps the coarse pass cheap; the fine pass below recovers
	// the exact peak. Kept independent of the window size.
	coarseSearchStride = 4

	// fineSearchRadius is the neighborhood re-scanned at unit stride around
	// the coarse best offset.
	fineSearchRadius = 2

	// Consecutive rejected frames tolerated before the reference is dropped
	// and reseeded from scratch. The EMA reference adapts slowly, so it is
	// given more time to recover than the accumulator.
	maxMissesAccumulator = 10
	maxMissesEMA         = 30
)

// Reference window upsampling
const (
	// cubicEdgeGuard is the distance from either template edge inside which
	// interpolation falls back from the 4-point Catmull-Rom stencil to
	// linear, since the stencil would read past the template.
	cubicEdgeGuard = 2
)

// Filter defaults
const (
	defaultHighPassCutoff = 40.0    // Hz, rumble removal
	defaultLowPassCutoff  = 12000.0 // Hz
	defaultFilterQ        = 0.7071  // Butterworth Q (1/sqrt 2)

	defaultSibilanceCenter    = 6500.0 // Hz, sibilance band center
	defaultSibilanceBandwidth = 3000.0 // Hz
	defaultSibilanceThreshold = 0.08   // Envelope level that triggers reduction
	defaultSibilanceRatio     = 4.0    // Gain reduction ratio above threshold

	// One-pole envelope follower time constants for the sibilance detector.
	// Fast attack catches transients; slow release avoids gain pumping.
	sibilanceAttackSeconds  = 0.002
	sibilanceReleaseSeconds = 0.050

	// minSibilanceGain bounds the attenuation applied by the sibilance
	// stage so pathological input cannot silence the signal entirely.
	minSibilanceGain = 0.1
)

// Frequency-selective correlation defaults
const (
	defaultBandLowHz  = 60.0
	defaultBandHighHz = 1200.0
)

// cacheLinePad is the padding inserted between the producer and consumer
// ring cursors so they never share a cache line. 64 bytes covers current
// amd64 and arm64 parts.
const cacheLinePad = 64
