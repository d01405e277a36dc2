package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthSource_RequiresStart(t *testing.T) {
	s := NewSynthSource(SynthParams{SampleRate: 48000, Channels: 1, FramesPerBlock: 64})

	buf := make([]float32, 64)
	_, err := s.ReadBlock(buf)
	assert.ErrorIs(t, err, ErrRead)

	require.NoError(t, s.Start())
	_, err = s.ReadBlock(buf)
	assert.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = s.ReadBlock(buf)
	assert.ErrorIs(t, err, ErrRead, "closed source must not deliver")
}

func TestSynthSource_GeneratesSine(t *testing.T) {
	const rate = 48000.0
	const freq = 750.0 // period 64, an integer number of periods per block

	s := NewSynthSource(SynthParams{
		SampleRate:     rate,
		Channels:       1,
		FramesPerBlock: 256,
		Frequency:      freq,
		Amplitude:      0.5,
	})
	require.NoError(t, s.Start())

	// Phase must be continuous across block boundaries.
	got := make([]float32, 0, 1024)
	buf := make([]float32, 256)
	for i := 0; i < 4; i++ {
		n, err := s.ReadBlock(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	for i, sample := range got {
		want := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate)
		assert.InDelta(t, want, float64(sample), 1e-4, "sample %d", i)
	}
}

func TestSynthSource_StereoInterleaving(t *testing.T) {
	s := NewSynthSource(SynthParams{
		SampleRate:     48000,
		Channels:       2,
		FramesPerBlock: 128,
		Frequency:      440,
		Amplitude:      0.8,
	})
	require.NoError(t, s.Start())

	buf := make([]float32, 256)
	n, err := s.ReadBlock(buf)
	require.NoError(t, err)
	require.Equal(t, 256, n)

	for f := 0; f < 128; f++ {
		left, right := buf[2*f], buf[2*f+1]
		assert.InDelta(t, float64(left)*rightChannelGain, float64(right), 1e-6,
			"frame %d", f)
	}
}

func TestSynthSource_DeterministicNoise(t *testing.T) {
	params := SynthParams{
		SampleRate:     48000,
		Channels:       1,
		FramesPerBlock: 256,
		NoiseLevel:     0.3,
		Seed:           42,
	}

	a := NewSynthSource(params)
	b := NewSynthSource(params)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	bufA := make([]float32, 256)
	bufB := make([]float32, 256)
	_, err := a.ReadBlock(bufA)
	require.NoError(t, err)
	_, err = b.ReadBlock(bufB)
	require.NoError(t, err)

	assert.Equal(t, bufA, bufB, "same seed must reproduce the same noise")

	var energy float64
	for _, s := range bufA {
		energy += float64(s) * float64(s)
	}
	assert.Greater(t, energy, 0.0)
}

func TestSynthSource_SilenceWhenZeroFrequency(t *testing.T) {
	s := NewSynthSource(SynthParams{
		SampleRate:     48000,
		Channels:       1,
		FramesPerBlock: 64,
	})
	require.NoError(t, s.Start())

	buf := make([]float32, 64)
	n, err := s.ReadBlock(buf)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.Equal(t, float32(0), buf[i])
	}
}
