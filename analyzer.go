package phasescope

import (
	"math"

	"github.com/jotoft/loopback-visualizer-sub000/internal/bandfilter"
	"github.com/jotoft/loopback-visualizer-sub000/internal/simdops"
)

// AnalyzerState is the per-frame analyzer output. It is recomputed on every
// Analyze call and never persisted.
type AnalyzerState struct {
	// BestCorrelation is the best normalized cross-correlation found this
	// frame, 0 for silence or when the analyzer is disabled.
	BestCorrelation float32

	// HasLock reports whether the best match cleared the correlation
	// threshold.
	HasLock bool

	// ReadPosition is the index into the analysis buffer at which the
	// renderer should start reading DisplaySamples samples (wrap-aware, see
	// CopyWindow).
	ReadPosition int
}

// zeroEnergyEpsilon guards the correlation denominator. Energies at or
// below it are treated as silence and yield correlation 0.
const zeroEnergyEpsilon = 1e-12

// PhaseLockAnalyzer keeps a rolling analysis buffer of recent samples and,
// once per display frame, re-synchronizes a read cursor to the position
// whose waveform best matches a tracked reference template. All methods
// belong to the display/analysis goroutine; nothing here blocks or
// allocates after construction.
type PhaseLockAnalyzer struct {
	cfg AnalyzerConfig

	buf   []float32 // analysis ring, distinct from the transport ring
	head  int       // next write index
	total uint64    // cumulative samples added

	// recent holds the newest DisplaySamples+SearchRange+CorrelationWindow
	// samples unwrapped in chronological order; banded is its band-limited
	// copy when frequency-selective correlation is on.
	recent []float32
	banded []float32
	band   *bandfilter.Bandpass

	ref      []float32
	refCount int
	hasRef   bool
	misses   int

	readPos int
	hasPos  bool
}

// NewPhaseLockAnalyzer creates an analyzer. The configuration must satisfy
// PhaseBufferSize >= DisplaySamples + SearchRange + CorrelationWindowSize.
func NewPhaseLockAnalyzer(cfg AnalyzerConfig) (*PhaseLockAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &PhaseLockAnalyzer{cfg: cfg}
	if err := a.allocate(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *PhaseLockAnalyzer) allocate() error {
	scan := a.cfg.DisplaySamples + a.cfg.SearchRange + a.cfg.CorrelationWindowSize

	a.buf = make([]float32, a.cfg.PhaseBufferSize)
	a.recent = make([]float32, scan)
	a.ref = make([]float32, a.cfg.CorrelationWindowSize)

	if a.cfg.UseFrequencyFilter {
		band, err := bandfilter.New(a.cfg.BandLowHz, a.cfg.BandHighHz, a.cfg.SampleRate, scan)
		if err != nil {
			return err
		}
		a.band = band
		a.banded = make([]float32, scan)
	}

	return nil
}

// AddSamples appends samples to the analysis buffer, overwriting the oldest
// data once the buffer is full.
func (a *PhaseLockAnalyzer) AddSamples(samples []float32) {
	n := len(a.buf)

	// Only the newest n samples can survive anyway.
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}

	first := n - a.head
	if first >= len(samples) {
		copy(a.buf[a.head:], samples)
	} else {
		copy(a.buf[a.head:], samples[:first])
		copy(a.buf, samples[first:])
	}

	a.head = (a.head + len(samples)) % n
	a.total += uint64(len(samples))
}

// Analyze runs one frame of phase tracking and returns where the renderer
// should read from. With locked=false the analyzer passes through the most
// recent display window and discards any reference, so re-enabling starts
// cold. Analyze never fails; degenerate input (silence) yields correlation
// 0 and no lock.
func (a *PhaseLockAnalyzer) Analyze(locked bool) AnalyzerState {
	if !locked {
		a.dropReference()
		a.misses = 0
		a.readPos = a.newestWindowStart()
		a.hasPos = true
		return AnalyzerState{ReadPosition: a.readPos}
	}

	scan := len(a.recent)
	if a.total < uint64(scan) {
		// Not enough history for a full search yet.
		a.readPos = a.newestWindowStart()
		a.hasPos = true
		return AnalyzerState{ReadPosition: a.readPos}
	}

	a.unwrapRecent()

	sig := a.recent
	if a.band != nil {
		a.band.Process(a.banded, a.recent)
		sig = a.banded
	}

	window := a.cfg.CorrelationWindowSize
	if !a.hasRef {
		// Seed from the newest window; the search below will trivially
		// re-find it at offset 0 and fold it in.
		copy(a.ref, sig[scan-window:])
		a.refCount = 1
		a.hasRef = true
	}

	best, bestOffset := a.search(sig)

	var target int
	hasLock := best > a.cfg.CorrelationThreshold

	if hasLock {
		a.blendReference(sig, bestOffset)
		a.misses = 0
		target = scan - window - bestOffset
	} else {
		a.misses++
		if a.misses > a.maxMisses() {
			// Persistent mismatch: the signal has changed shape. Drop the
			// reference so the next good frame reseeds from scratch.
			a.dropReference()
			a.misses = 0
		}
		target = scan - a.cfg.DisplaySamples
	}

	a.smoothTowards(a.ringIndex(target))

	return AnalyzerState{
		BestCorrelation: best,
		HasLock:         hasLock,
		ReadPosition:    a.readPos,
	}
}

// search runs the coarse strided scan followed by the unit-stride fine scan
// around the coarse peak. Offsets are scanned ascending, so correlation
// ties keep the earliest (least-lag) offset.
func (a *PhaseLockAnalyzer) search(sig []float32) (best float32, bestOffset int) {
	window := a.cfg.CorrelationWindowSize
	scan := len(sig)

	refEnergy := simdops.Energy(a.ref)

	// Candidates must leave a full display window after the match point.
	minOffset := 0
	if a.cfg.DisplaySamples > window {
		minOffset = a.cfg.DisplaySamples - window
	}

	best = float32(math.Inf(-1))
	bestOffset = minOffset

	for k := minOffset; k <= a.cfg.SearchRange; k += coarseSearchStride {
		if c := a.correlateAt(sig, k, refEnergy); c > best {
			best = c
			bestOffset = k
		}
	}

	lo := bestOffset - fineSearchRadius
	if lo < minOffset {
		lo = minOffset
	}
	hi := bestOffset + fineSearchRadius
	if hi > a.cfg.SearchRange {
		hi = a.cfg.SearchRange
	}
	for k := lo; k <= hi; k++ {
		if c := a.correlateAt(sig, k, refEnergy); c > best {
			best = c
			bestOffset = k
		}
	}

	if math.IsInf(float64(best), -1) {
		best = 0
	}

	return best, bestOffset
}

// correlateAt computes the normalized cross-correlation between the
// reference and the candidate segment ending k samples before the newest
// sample. Zero energy on either side yields 0, never NaN.
func (a *PhaseLockAnalyzer) correlateAt(sig []float32, k int, refEnergy float32) float32 {
	window := a.cfg.CorrelationWindowSize
	start := len(sig) - window - k
	seg := sig[start : start+window]

	segEnergy := simdops.Energy(seg)
	if segEnergy <= zeroEnergyEpsilon || refEnergy <= zeroEnergyEpsilon {
		return 0
	}

	return simdops.Dot(seg, a.ref) / float32(math.Sqrt(float64(segEnergy)*float64(refEnergy)))
}

// blendReference folds the accepted match into the reference under the
// configured policy.
func (a *PhaseLockAnalyzer) blendReference(sig []float32, offset int) {
	window := a.cfg.CorrelationWindowSize
	start := len(sig) - window - offset
	seg := sig[start : start+window]

	switch a.cfg.Mode {
	case ReferenceAccumulator:
		// True running mean over the accumulated matches.
		a.refCount++
		inv := 1 / float32(a.refCount)
		for i, s := range seg {
			a.ref[i] += (s - a.ref[i]) * inv
		}

		if a.refCount >= a.cfg.AccumulatorResetCount {
			// Periodic fresh start: drop the template so tracking reseeds
			// from the live signal next frame.
			a.dropReference()
		}

	case ReferenceEMA:
		alpha := a.cfg.EMAAlpha
		keep := 1 - alpha
		for i, s := range seg {
			a.ref[i] = keep*a.ref[i] + alpha*s
		}
		a.refCount++
	}
}

// smoothTowards advances the read position a fraction of the wrap-aware
// phase difference toward target, preventing discontinuous jumps when the
// lock moves quickly.
func (a *PhaseLockAnalyzer) smoothTowards(target int) {
	if !a.hasPos {
		a.readPos = target
		a.hasPos = true
		return
	}

	n := len(a.buf)
	diff := (target - a.readPos) % n
	if diff > n/2 {
		diff -= n
	} else if diff <= -n/2 {
		diff += n
	}

	step := int(math.Round(float64(diff) * float64(1-a.cfg.PhaseSmoothing)))
	a.readPos = ((a.readPos+step)%n + n) % n
}

// CopyWindow copies len(dst) contiguous (wrap-aware) samples starting at
// start into dst. start is typically AnalyzerState.ReadPosition. It returns
// the number copied, which is len(dst) capped at the buffer size.
func (a *PhaseLockAnalyzer) CopyWindow(dst []float32, start int) int {
	n := len(a.buf)
	if start < 0 || start >= n {
		start = ((start % n) + n) % n
	}

	count := len(dst)
	if count > n {
		count = n
	}

	first := n - start
	if first >= count {
		copy(dst[:count], a.buf[start:start+count])
	} else {
		copy(dst[:first], a.buf[start:])
		copy(dst[first:count], a.buf[:count-first])
	}

	return count
}

// ReferenceWindow renders the reference template upsampled into dst using a
// Catmull-Rom 4-point stencil, falling back to linear interpolation within
// two samples of either template edge. It returns false (leaving dst
// untouched) when no reference is currently tracked.
func (a *PhaseLockAnalyzer) ReferenceWindow(dst []float32) bool {
	if !a.hasRef || len(dst) == 0 {
		return false
	}

	ref := a.ref
	if len(dst) == 1 {
		dst[0] = ref[0]
		return true
	}

	scale := float64(len(ref)-1) / float64(len(dst)-1)

	for i := range dst {
		pos := float64(i) * scale
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx >= len(ref)-1 {
			dst[i] = ref[len(ref)-1]
			continue
		}

		if idx < cubicEdgeGuard || idx >= len(ref)-cubicEdgeGuard {
			// Stencil would read past the template; linear is close enough
			// at the edges.
			dst[i] = ref[idx] + (ref[idx+1]-ref[idx])*frac
			continue
		}

		dst[i] = catmullRom(ref[idx-1], ref[idx], ref[idx+1], ref[idx+2], frac)
	}

	return true
}

// ReferenceCount returns the number of matches folded into the current
// reference, 0 when none is tracked.
func (a *PhaseLockAnalyzer) ReferenceCount() int {
	if !a.hasRef {
		return 0
	}
	return a.refCount
}

// HasReference reports whether a reference template is currently tracked.
func (a *PhaseLockAnalyzer) HasReference() bool {
	return a.hasRef
}

// BufferSize returns the analysis buffer capacity in samples.
func (a *PhaseLockAnalyzer) BufferSize() int {
	return len(a.buf)
}

// Config returns the active configuration.
func (a *PhaseLockAnalyzer) Config() AnalyzerConfig {
	return a.cfg
}

// SetMode switches the reference blend policy. Changing modes clears the
// reference and the lock so the new policy starts from a fresh seed.
func (a *PhaseLockAnalyzer) SetMode(mode ReferenceMode) {
	if mode == a.cfg.Mode {
		return
	}
	a.cfg.Mode = mode
	a.dropReference()
	a.misses = 0
}

// Reset drops the reference, the lock and the smoothed read position.
// Buffered samples are kept; the next Analyze reseeds from them.
func (a *PhaseLockAnalyzer) Reset() {
	a.dropReference()
	a.misses = 0
	a.hasPos = false
	a.readPos = 0
}

// Reconfigure revalidates and applies a new configuration, reallocating the
// internal buffers. All analysis state is invalidated: resizing any window
// makes the reference template meaningless, so tracking restarts cold.
func (a *PhaseLockAnalyzer) Reconfigure(cfg AnalyzerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.band = nil
	a.banded = nil
	if err := a.allocate(); err != nil {
		return err
	}

	a.head = 0
	a.total = 0
	a.Reset()

	return nil
}

func (a *PhaseLockAnalyzer) dropReference() {
	a.hasRef = false
	a.refCount = 0
}

func (a *PhaseLockAnalyzer) maxMisses() int {
	if a.cfg.Mode == ReferenceEMA {
		return maxMissesEMA
	}
	return maxMissesAccumulator
}

// newestWindowStart returns the ring index of the most recent
// DisplaySamples-worth of data (or of everything buffered, early on).
func (a *PhaseLockAnalyzer) newestWindowStart() int {
	n := len(a.buf)
	avail := a.cfg.DisplaySamples
	if a.total < uint64(avail) {
		avail = int(a.total)
	}
	return ((a.head-avail)%n + n) % n
}

// unwrapRecent copies the newest len(recent) samples into the contiguous
// scratch buffer, oldest first.
func (a *PhaseLockAnalyzer) unwrapRecent() {
	n := len(a.buf)
	scan := len(a.recent)
	start := ((a.head-scan)%n + n) % n

	first := n - start
	if first >= scan {
		copy(a.recent, a.buf[start:start+scan])
	} else {
		copy(a.recent[:first], a.buf[start:])
		copy(a.recent[first:], a.buf[:scan-first])
	}
}

// ringIndex maps an index in the recent scratch back to the analysis ring.
func (a *PhaseLockAnalyzer) ringIndex(recentIdx int) int {
	n := len(a.buf)
	return ((a.head-len(a.recent)+recentIdx)%n + n) % n
}

// catmullRom evaluates the Catmull-Rom spline through p0..p3 at t in [0,1]
// between p1 and p2.
func catmullRom(p0, p1, p2, p3, t float32) float32 {
	t2 := t * t
	t3 := t2 * t

	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}
