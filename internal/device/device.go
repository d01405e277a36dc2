// Package device abstracts audio capture sources behind a small capability
// interface. The real backend is PortAudio; a deterministic synthetic source
// is provided for tests and offline use. Callers select the implementation
// at construction time.
package device

import "errors"

// Sentinel errors reported by sources. The capture engine maps these onto
// its public error taxonomy.
var (
	// ErrNotFound indicates the requested device does not exist.
	ErrNotFound = errors.New("device not found")

	// ErrInit indicates host or stream initialization failed.
	ErrInit = errors.New("device initialization failed")

	// ErrRead indicates a mid-stream read failure.
	ErrRead = errors.New("device read failed")

	// ErrFormat indicates the device rejected the requested format.
	ErrFormat = errors.New("device format unsupported")
)

// Info describes one capture device.
type Info struct {
	// Index identifies the device in CaptureParams.DeviceIndex.
	Index int

	// Name is the host-reported device name.
	Name string

	// MaxInputChannels is the channel capacity of the device.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred rate in Hz.
	DefaultSampleRate float64

	// IsDefault marks the host's default input device.
	IsDefault bool
}

// Source delivers blocks of interleaved float32 frames. Implementations are
// owned by a single goroutine: Start, ReadBlock and Close must all be called
// from the same goroutine, and ReadBlock may block until a device block is
// available.
type Source interface {
	// Start opens the underlying stream. It must be called before ReadBlock.
	Start() error

	// ReadBlock fills dst with interleaved samples and returns the number of
	// samples written. dst should hold FramesPerBlock*Channels samples; a
	// short read is not an error.
	ReadBlock(dst []float32) (int, error)

	// SampleRate returns the stream rate in Hz.
	SampleRate() float64

	// Channels returns the number of interleaved channels per frame.
	Channels() int

	// Close stops and releases the stream. Safe to call after a ReadBlock
	// failure; must be called exactly once.
	Close() error
}
