package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// UseDefaultDevice selects the host's default input device in CaptureParams.
const UseDefaultDevice = -1

// CaptureParams configures a PortAudio capture source.
type CaptureParams struct {
	// DeviceIndex selects the device from ListDevices, or UseDefaultDevice.
	DeviceIndex int

	// SampleRate in Hz.
	SampleRate float64

	// Channels to capture (interleaved).
	Channels int

	// FramesPerBlock is the blocking read granularity.
	FramesPerBlock int
}

// PortAudioSource captures audio through PortAudio's blocking read API.
type PortAudioSource struct {
	params      CaptureParams
	stream      *portaudio.Stream
	buf         []float32
	initialized bool
}

var _ Source = (*PortAudioSource)(nil)

// ListDevices enumerates capture-capable devices. PortAudio is initialized
// and terminated around the enumeration, so this is safe to call before any
// source exists.
func ListDevices() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}
	defer portaudio.Terminate() //nolint:errcheck // enumeration only

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()

	infos := make([]Info, 0, len(devices))
	for i, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		infos = append(infos, Info{
			Index:             i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultIn != nil && dev.Name == defaultIn.Name,
		})
	}

	return infos, nil
}

// DefaultDevice returns the host's default input device, or nil if the host
// reports none.
func DefaultDevice() (*Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}
	defer portaudio.Terminate() //nolint:errcheck // enumeration only

	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		return nil, nil
	}

	return &Info{
		Index:             UseDefaultDevice,
		Name:              dev.Name,
		MaxInputChannels:  dev.MaxInputChannels,
		DefaultSampleRate: dev.DefaultSampleRate,
		IsDefault:         true,
	}, nil
}

// NewPortAudioSource creates an unopened PortAudio source. The stream is
// opened by Start, from the goroutine that will read it.
func NewPortAudioSource(params CaptureParams) *PortAudioSource {
	return &PortAudioSource{
		params: params,
		buf:    make([]float32, params.FramesPerBlock*params.Channels),
	}
}

// Start initializes PortAudio and opens the capture stream.
func (s *PortAudioSource) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	s.initialized = true

	var (
		stream *portaudio.Stream
		err    error
	)

	if s.params.DeviceIndex == UseDefaultDevice {
		stream, err = portaudio.OpenDefaultStream(
			s.params.Channels, 0,
			s.params.SampleRate, s.params.FramesPerBlock, s.buf)
	} else {
		devices, devErr := portaudio.Devices()
		if devErr != nil {
			s.teardown()
			return fmt.Errorf("%w: %v", ErrInit, devErr)
		}
		if s.params.DeviceIndex < 0 || s.params.DeviceIndex >= len(devices) {
			s.teardown()
			return fmt.Errorf("%w: index %d", ErrNotFound, s.params.DeviceIndex)
		}
		dev := devices[s.params.DeviceIndex]
		if dev.MaxInputChannels < s.params.Channels {
			s.teardown()
			return fmt.Errorf("%w: %q has %d input channels, need %d",
				ErrFormat, dev.Name, dev.MaxInputChannels, s.params.Channels)
		}

		streamParams := portaudio.LowLatencyParameters(dev, nil)
		streamParams.Input.Channels = s.params.Channels
		streamParams.SampleRate = s.params.SampleRate
		streamParams.FramesPerBuffer = s.params.FramesPerBlock
		stream, err = portaudio.OpenStream(streamParams, s.buf)
	}

	if err != nil {
		s.teardown()
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		s.stream.Close() //nolint:errcheck // already failing
		s.stream = nil
		s.teardown()
		return fmt.Errorf("%w: %v", ErrInit, err)
	}

	return nil
}

// ReadBlock blocks until the next device block arrives and copies it into
// dst. The copy out of the stream's own buffer keeps dst valid after the
// next read.
func (s *PortAudioSource) ReadBlock(dst []float32) (int, error) {
	if s.stream == nil {
		return 0, fmt.Errorf("%w: stream not started", ErrRead)
	}

	if err := s.stream.Read(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRead, err)
	}

	n := copy(dst, s.buf)
	return n, nil
}

// SampleRate returns the configured stream rate.
func (s *PortAudioSource) SampleRate() float64 { return s.params.SampleRate }

// Channels returns the configured channel count.
func (s *PortAudioSource) Channels() int { return s.params.Channels }

// Close stops the stream and shuts PortAudio down.
func (s *PortAudioSource) Close() error {
	var firstErr error

	if s.stream != nil {
		if err := s.stream.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.stream = nil
	}

	s.teardown()
	return firstErr
}

func (s *PortAudioSource) teardown() {
	if s.initialized {
		portaudio.Terminate() //nolint:errcheck // best effort
		s.initialized = false
	}
}
