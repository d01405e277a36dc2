package phasescope

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jotoft/loopback-visualizer-sub000/internal/device"
)

// CaptureStats is a snapshot of the engine's transport counters. The
// counters are plain atomics mutated only by their owning side, so a
// snapshot is eventually consistent rather than a single point in time.
type CaptureStats struct {
	// Capacity is the transport ring capacity in samples.
	Capacity int

	// Available is the number of samples currently buffered.
	Available int

	// TotalCaptured counts every sample accepted into the ring.
	TotalCaptured uint64

	// Overruns counts samples dropped because the consumer fell behind.
	Overruns uint64

	// Underruns counts reads that requested more samples than were buffered.
	Underruns uint64
}

// SampleSource delivers blocks of interleaved float32 frames to the capture
// engine. It is owned by the capture goroutine: Start, ReadBlock and Close
// are only ever called from there (Start from the caller's goroutine before
// the capture goroutine exists). ReadBlock may block until a device block is
// available. The implementations in internal/device (PortAudio, synthetic)
// satisfy this interface; callers may supply their own.
type SampleSource interface {
	// Start opens the underlying stream.
	Start() error

	// ReadBlock fills dst with interleaved samples and returns the number
	// written. A short read is not an error.
	ReadBlock(dst []float32) (int, error)

	// SampleRate returns the stream rate in Hz.
	SampleRate() float64

	// Channels returns the interleaved channel count.
	Channels() int

	// Close stops and releases the stream.
	Close() error
}

// CaptureEngine owns the audio source, the capture goroutine and the
// transport ring. The goroutine is the ring's only producer; the goroutine
// calling ReadSamples/PeekSamples is the only consumer.
type CaptureEngine struct {
	cfg    CaptureConfig
	source SampleSource
	ring   *SampleRingBuffer

	capturing atomic.Bool
	done      chan struct{}

	captured  atomic.Uint64
	overruns  atomic.Uint64
	underruns atomic.Uint64

	// Scratch buffers owned by the capture goroutine. Allocated once so the
	// goroutine never allocates while running.
	block []float32
	mono  []float32
}

// NewCaptureEngine creates an engine over the given source. The source must
// match cfg's channel count; it is started and closed by the engine.
func NewCaptureEngine(cfg CaptureConfig, source SampleSource) (*CaptureEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if source.Channels() != cfg.Channels {
		return nil, fmt.Errorf("%w: source has %d channels, config wants %d",
			ErrUnsupportedFormat, source.Channels(), cfg.Channels)
	}

	ring, err := NewSampleRingBuffer(cfg.RingCapacity)
	if err != nil {
		return nil, err
	}

	blockSamples := cfg.FramesPerBlock * cfg.Channels

	return &CaptureEngine{
		cfg:    cfg,
		source: source,
		ring:   ring,
		block:  make([]float32, blockSamples),
		mono:   make([]float32, cfg.FramesPerBlock),
	}, nil
}

// NewDefaultCaptureEngine opens the host's default input device with the
// given configuration.
func NewDefaultCaptureEngine(cfg CaptureConfig) (*CaptureEngine, error) {
	source := device.NewPortAudioSource(device.CaptureParams{
		DeviceIndex:    device.UseDefaultDevice,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		FramesPerBlock: cfg.FramesPerBlock,
	})
	return NewCaptureEngine(cfg, source)
}

// Start opens the source and spawns exactly one capture goroutine. Errors
// opening the device are returned here; mid-stream errors go to
// cfg.OnError.
func (e *CaptureEngine) Start() error {
	if e.capturing.Load() {
		return fmt.Errorf("%w: already capturing", ErrInitializationFailed)
	}

	if err := e.source.Start(); err != nil {
		return mapDeviceError(err)
	}

	e.capturing.Store(true)
	e.done = make(chan struct{})

	go e.captureLoop()

	return nil
}

// Stop requests the capture goroutine to exit and blocks until it has. After
// Stop returns, no further ring writes occur, so the engine (and its ring)
// can be safely discarded. Stop is idempotent and a no-op before Start.
//
// Cancellation is cooperative: the flag is polled once per device block. A
// platform read that never returns would hang Stop; no timeout is applied.
func (e *CaptureEngine) Stop() {
	e.capturing.Store(false)
	if e.done != nil {
		<-e.done
	}
}

// IsCapturing reports whether the capture goroutine is running.
func (e *CaptureEngine) IsCapturing() bool {
	return e.capturing.Load()
}

// ReadSamples drains up to len(dst) samples from the ring in FIFO order and
// returns the number read. A short read increments the underrun counter.
func (e *CaptureEngine) ReadSamples(dst []float32) int {
	n := e.ring.ReadBulk(dst)
	if n < len(dst) {
		e.underruns.Add(1)
	}
	return n
}

// PeekSamples copies up to len(dst) samples starting offset samples past the
// read position without consuming them.
func (e *CaptureEngine) PeekSamples(dst []float32, offset int) int {
	return e.ring.PeekBulk(dst, offset)
}

// AvailableSamples returns the number of buffered samples.
func (e *CaptureEngine) AvailableSamples() int {
	return e.ring.AvailableRead()
}

// Stats returns a snapshot of the transport counters.
func (e *CaptureEngine) Stats() CaptureStats {
	return CaptureStats{
		Capacity:      e.ring.Capacity(),
		Available:     e.ring.AvailableRead(),
		TotalCaptured: e.captured.Load(),
		Overruns:      e.overruns.Load(),
		Underruns:     e.underruns.Load(),
	}
}

// captureLoop runs on the capture goroutine: pull one device block, downmix
// if configured, push sample by sample. Buffer-full is not an error; the
// sample is dropped and counted as an overrun.
func (e *CaptureEngine) captureLoop() {
	defer close(e.done)
	defer e.source.Close() //nolint:errcheck // nothing to do with it here

	for e.capturing.Load() {
		n, err := e.source.ReadBlock(e.block)
		if err != nil {
			if e.cfg.OnError != nil {
				e.cfg.OnError(mapDeviceError(err))
			}
			e.capturing.Store(false)
			return
		}

		samples := e.block[:n]
		if e.cfg.Channels == 2 && e.cfg.Downmix {
			frames := n / 2
			for i := 0; i < frames; i++ {
				e.mono[i] = (samples[2*i] + samples[2*i+1]) * 0.5
			}
			samples = e.mono[:frames]
		}

		for _, s := range samples {
			if e.ring.TryWrite(s) {
				e.captured.Add(1)
			} else {
				e.overruns.Add(1)
			}
		}
	}
}

// mapDeviceError translates device-layer sentinels onto the public capture
// error taxonomy.
func mapDeviceError(err error) error {
	switch {
	case errors.Is(err, device.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	case errors.Is(err, device.ErrInit):
		return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	case errors.Is(err, device.ErrRead):
		return fmt.Errorf("%w: %v", ErrReadFailed, err)
	case errors.Is(err, device.ErrFormat):
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	default:
		return fmt.Errorf("%w: %v", ErrSystem, err)
	}
}
