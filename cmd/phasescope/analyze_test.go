package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSampleValue(t *testing.T) {
	assert.Equal(t, 32767.0, maxSampleValue(16))
	assert.Equal(t, 8388607.0, maxSampleValue(24))
	assert.Equal(t, 2147483647.0, maxSampleValue(32))
	assert.Equal(t, 32767.0, maxSampleValue(0), "unknown depths fall back to 16-bit")
}

func TestConfigKey(t *testing.T) {
	assert.Equal(t, "sample_rate", configKey("sample-rate"))
	assert.Equal(t, "threshold", configKey("threshold"))
	assert.Equal(t, "band_low", configKey("band-low"))
}

func TestEstimateDominantFrequency(t *testing.T) {
	const rate = 48000.0

	for _, freq := range []float64{440.0, 1000.0, 375.0} {
		samples := make([]float32, estimateWindow)
		for i := range samples {
			samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate))
		}

		got := estimateDominantFrequency(samples, rate)
		assert.InDelta(t, freq, got, 1.0, "freq %g", freq)
	}
}

func TestEstimateDominantFrequency_ShortInput(t *testing.T) {
	const rate = 48000.0
	const freq = 600.0

	samples := make([]float32, 4096)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
	}

	got := estimateDominantFrequency(samples, rate)
	assert.InDelta(t, freq, got, 6.0, "short input uses a smaller window")
}
