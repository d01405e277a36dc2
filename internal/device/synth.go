package device

import (
	"math"
	"math/rand"
	"time"
)

// SynthParams configures a synthetic capture source.
type SynthParams struct {
	// SampleRate in Hz.
	SampleRate float64

	// Channels of interleaved output. Stereo emits the same waveform on
	// both channels with the right channel attenuated, so downmix tests
	// have something to average.
	Channels int

	// FramesPerBlock is the block granularity, matching a real device.
	FramesPerBlock int

	// Frequency of the generated sine in Hz. 0 generates silence.
	Frequency float64

	// Amplitude of the sine, typically in (0, 1].
	Amplitude float32

	// NoiseLevel adds uniform noise of the given peak amplitude.
	NoiseLevel float32

	// Paced makes ReadBlock sleep for one block duration, approximating a
	// real-time device. Unpaced sources deliver blocks as fast as the
	// caller drains them.
	Paced bool

	// Seed for the noise generator; a fixed seed keeps tests deterministic.
	Seed int64
}

// SynthSource generates a deterministic sine (plus optional noise) with the
// same blocking-read shape as a real device.
type SynthSource struct {
	params   SynthParams
	phase    float64
	step     float64
	rng      *rand.Rand
	blockDur time.Duration
	started  bool
}

var _ Source = (*SynthSource)(nil)

// rightChannelGain attenuates the right channel of a stereo synth source so
// averaged downmix output differs from either channel.
const rightChannelGain = 0.5

// NewSynthSource creates a synthetic source.
func NewSynthSource(params SynthParams) *SynthSource {
	if params.Channels < 1 {
		params.Channels = 1
	}

	return &SynthSource{
		params:   params,
		step:     params.Frequency / params.SampleRate,
		rng:      rand.New(rand.NewSource(params.Seed)),
		blockDur: time.Duration(float64(params.FramesPerBlock) / params.SampleRate * float64(time.Second)),
	}
}

// Start marks the source running.
func (s *SynthSource) Start() error {
	s.started = true
	return nil
}

// ReadBlock fills dst with interleaved frames of the configured waveform.
func (s *SynthSource) ReadBlock(dst []float32) (int, error) {
	if !s.started {
		return 0, ErrRead
	}

	if s.params.Paced {
		time.Sleep(s.blockDur)
	}

	frames := len(dst) / s.params.Channels
	i := 0
	for f := 0; f < frames; f++ {
		sample := s.params.Amplitude * float32(math.Sin(2*math.Pi*s.phase))
		if s.params.NoiseLevel > 0 {
			sample += s.params.NoiseLevel * (2*s.rng.Float32() - 1)
		}
		_, s.phase = math.Modf(s.phase + s.step)

		dst[i] = sample
		i++
		if s.params.Channels > 1 {
			dst[i] = sample * rightChannelGain
			i++
		}
	}

	return i, nil
}

// SampleRate returns the configured rate.
func (s *SynthSource) SampleRate() float64 { return s.params.SampleRate }

// Channels returns the configured channel count.
func (s *SynthSource) Channels() int { return s.params.Channels }

// Close stops the source.
func (s *SynthSource) Close() error {
	s.started = false
	return nil
}
