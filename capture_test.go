package phasescope

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jotoft/loopback-visualizer-sub000/internal/device"
	"github.com/jotoft/loopback-visualizer-sub000/internal/testutil"
)

func testCaptureConfig() CaptureConfig {
	cfg := DefaultCaptureConfig()
	cfg.RingCapacity = 4096
	return cfg
}

func newSynth(cfg CaptureConfig, channels int) *device.SynthSource {
	return device.NewSynthSource(device.SynthParams{
		SampleRate:     cfg.SampleRate,
		Channels:       channels,
		FramesPerBlock: cfg.FramesPerBlock,
		Frequency:      440,
		Amplitude:      0.5,
		Paced:          true,
	})
}

func TestCaptureEngine_ChannelMismatch(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.Channels = 1

	_, err := NewCaptureEngine(cfg, newSynth(cfg, 2))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCaptureEngine_StartStop(t *testing.T) {
	cfg := testCaptureConfig()
	e, err := NewCaptureEngine(cfg, newSynth(cfg, 1))
	require.NoError(t, err)

	require.NoError(t, e.Start())
	assert.True(t, e.IsCapturing())

	// Double start must fail without disturbing the running engine.
	assert.Error(t, e.Start())
	assert.True(t, e.IsCapturing())

	// Wait for at least one block to land in the ring.
	deadline := time.Now().Add(2 * time.Second)
	for e.AvailableSamples() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Greater(t, e.AvailableSamples(), 0, "no samples captured")

	e.Stop()
	assert.False(t, e.IsCapturing())

	// Stop is idempotent.
	e.Stop()

	stats := e.Stats()
	assert.Greater(t, stats.TotalCaptured, uint64(0))
	assert.Equal(t, cfg.RingCapacity, stats.Capacity)
}

func TestCaptureEngine_ReadSamples(t *testing.T) {
	cfg := testCaptureConfig()
	e, err := NewCaptureEngine(cfg, newSynth(cfg, 1))
	require.NoError(t, err)

	require.NoError(t, e.Start())
	defer e.Stop()

	got := make([]float32, 0, 2048)
	buf := make([]float32, 256)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 2048 && time.Now().Before(deadline) {
		n := e.ReadSamples(buf)
		got = append(got, buf[:n]...)
	}
	require.GreaterOrEqual(t, len(got), 2048, "capture too slow")

	testutil.AssertNoNaNOrInf(t, got)
	testutil.AssertAllInRange(t, got, -1.0, 1.0)
	assert.Greater(t, testutil.Energy(got), 0.0, "sine source delivered silence")
}

func TestCaptureEngine_StereoDownmix(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.Channels = 2
	cfg.Downmix = true

	e, err := NewCaptureEngine(cfg, newSynth(cfg, 2))
	require.NoError(t, err)

	require.NoError(t, e.Start())
	defer e.Stop()

	buf := make([]float32, 1024)
	got := make([]float32, 0, 1024)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 1024 && time.Now().Before(deadline) {
		n := e.ReadSamples(buf)
		got = append(got, buf[:n]...)
	}
	require.GreaterOrEqual(t, len(got), 1024)

	// The synth's right channel is attenuated, so the downmixed peak sits
	// between the two channel amplitudes rather than at either one.
	var peak float32
	for _, s := range got {
		if s > peak {
			peak = s
		}
	}
	assert.InDelta(t, 0.375, peak, 0.02, "downmix should average the channels")
}

func TestCaptureEngine_UnderrunCounting(t *testing.T) {
	cfg := testCaptureConfig()
	e, err := NewCaptureEngine(cfg, newSynth(cfg, 1))
	require.NoError(t, err)

	// Reading from an idle engine is a short read, by definition.
	buf := make([]float32, 64)
	assert.Equal(t, 0, e.ReadSamples(buf))
	assert.Equal(t, uint64(1), e.Stats().Underruns)
}

// failingSource errors on the first device read, which must surface on the
// error callback and terminate the capture goroutine.
type failingSource struct{}

func (failingSource) Start() error { return nil }
func (failingSource) ReadBlock(dst []float32) (int, error) {
	return 0, device.ErrRead
}
func (failingSource) SampleRate() float64 { return defaultSampleRate }
func (failingSource) Channels() int       { return 1 }
func (failingSource) Close() error        { return nil }

func TestCaptureEngine_ReadErrorStopsCapture(t *testing.T) {
	errCh := make(chan error, 1)

	cfg := testCaptureConfig()
	cfg.OnError = func(err error) { errCh <- err }

	e, err := NewCaptureEngine(cfg, failingSource{})
	require.NoError(t, err)
	require.NoError(t, e.Start())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrReadFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("error callback never fired")
	}

	e.Stop()
	assert.False(t, e.IsCapturing())
}

func TestMapDeviceError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{device.ErrNotFound, ErrDeviceNotFound},
		{device.ErrInit, ErrInitializationFailed},
		{device.ErrRead, ErrReadFailed},
		{device.ErrFormat, ErrUnsupportedFormat},
		{errors.New("portaudio exploded"), ErrSystem},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, mapDeviceError(tc.in), tc.want)
	}
}
