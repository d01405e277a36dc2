package phasescope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jotoft/loopback-visualizer-sub000/internal/testutil"
)

func TestFilterChain_InvalidConfig(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.SampleRate = 0
	_, err := NewFilterChain(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestFilterChain_HighPassKillsDC verifies the high-pass removes a constant
// offset while leaving an in-band tone mostly intact.
func TestFilterChain_HighPassKillsDC(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.LowPass.Enabled = false
	cfg.Sibilance.Enabled = false

	chain, err := NewFilterChain(cfg)
	require.NoError(t, err)

	// DC plus a 1 kHz tone, well above the 40 Hz cutoff.
	const n = 48000
	samples := testutil.Sine(n, 1000, cfg.SampleRate, 0.3)
	for i := range samples {
		samples[i] += 0.4
	}

	chain.Process(samples)
	testutil.AssertNoNaNOrInf(t, samples)

	// After the filter settles, the mean must be near zero and the tone
	// must survive.
	settled := samples[n/2:]
	var mean float64
	for _, s := range settled {
		mean += float64(s)
	}
	mean /= float64(len(settled))
	assert.InDelta(t, 0.0, mean, 0.01, "DC offset not removed")

	toneEnergy := testutil.Energy(settled) / float64(len(settled))
	assert.Greater(t, toneEnergy, 0.02, "in-band tone attenuated too much")
}

// TestFilterChain_LowPassAttenuatesHighs compares white-noise energy with
// the low-pass cutoff set far down versus wide open.
func TestFilterChain_LowPassAttenuatesHighs(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.HighPass.Enabled = false
	cfg.Sibilance.Enabled = false
	cfg.LowPass.Cutoff = 1000

	chain, err := NewFilterChain(cfg)
	require.NoError(t, err)

	const n = 48000
	narrow := testutil.WhiteNoise(n, 0.5, 1)
	chain.Process(narrow)

	cfg.LowPass.Cutoff = 20000
	wide, err := NewFilterChain(cfg)
	require.NoError(t, err)
	open := testutil.WhiteNoise(n, 0.5, 1)
	wide.Process(open)

	assert.Less(t, testutil.Energy(narrow), testutil.Energy(open)/2,
		"1 kHz cutoff should drop most broadband energy")
}

// TestFilterChain_RetuneKeepsHistory verifies coefficient updates do not
// reset filter state: processing must stay continuous across a cutoff
// change, with no click transient from a zeroed history.
func TestFilterChain_RetuneKeepsHistory(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.LowPass.Enabled = false
	cfg.Sibilance.Enabled = false

	chain, err := NewFilterChain(cfg)
	require.NoError(t, err)

	tone := testutil.Sine(8192, 500, cfg.SampleRate, 0.5)
	chain.Process(tone[:4096])

	hp := cfg.HighPass
	hp.Cutoff = 80
	chain.SetHighPass(hp)

	second := tone[4096:]
	chain.Process(second)

	testutil.AssertNoNaNOrInf(t, second)

	// A state reset would produce a step discontinuity at the boundary.
	// With history preserved the first post-retune samples stay close to
	// the steady-state tone amplitude.
	testutil.AssertAllInRange(t, second[:16], -0.6, 0.6)
}

func TestFilterChain_Reset(t *testing.T) {
	cfg := DefaultFilterConfig()
	chain, err := NewFilterChain(cfg)
	require.NoError(t, err)

	noise := testutil.WhiteNoise(4096, 0.8, 2)
	chain.Process(noise)

	chain.Reset()

	// After a reset, silence in produces silence out immediately.
	quiet := make([]float32, 256)
	chain.Process(quiet)
	assert.Equal(t, 0.0, testutil.Energy(quiet))
}

// TestFilterChain_SibilanceDucksBand verifies a loud tone inside the
// sibilance band is attenuated while the same tone below the band is not.
func TestFilterChain_SibilanceDucksBand(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.HighPass.Enabled = false
	cfg.LowPass.Enabled = false
	cfg.Sibilance.Enabled = true

	const n = 24000

	inBand, err := NewFilterChain(cfg)
	require.NoError(t, err)
	ess := testutil.Sine(n, cfg.Sibilance.Center, cfg.SampleRate, 0.8)
	inBand.Process(ess)

	outBand, err := NewFilterChain(cfg)
	require.NoError(t, err)
	low := testutil.Sine(n, 300, cfg.SampleRate, 0.8)
	outBand.Process(low)

	// Compare the settled halves.
	essEnergy := testutil.Energy(ess[n/2:])
	lowEnergy := testutil.Energy(low[n/2:])
	assert.Less(t, essEnergy, lowEnergy*0.8, "sibilance band not ducked")
}

func TestSoftClip(t *testing.T) {
	// In range: identity.
	assert.Equal(t, float32(0.5), softClip(0.5))
	assert.Equal(t, float32(-0.99), softClip(-0.99))
	assert.Equal(t, float32(0), softClip(0))

	// Out of range: bounded, monotone, symmetric.
	assert.Less(t, softClip(1.5), float32(1))
	assert.Greater(t, softClip(-1.5), float32(-1))
	assert.Less(t, softClip(2), softClip(10))
	assert.Equal(t, softClip(3), -softClip(-3))

	// Extreme input saturates toward the rails without NaN.
	testutil.AssertNoNaNOrInf(t, []float32{softClip(1e6), softClip(-1e6)})
}

func TestFilterChain_ExtremeInputStaysBounded(t *testing.T) {
	cfg := DefaultFilterConfig()
	chain, err := NewFilterChain(cfg)
	require.NoError(t, err)

	loud := testutil.Sine(48000, 2000, cfg.SampleRate, 10)
	chain.Process(loud)

	testutil.AssertNoNaNOrInf(t, loud)
	testutil.AssertAllInRange(t, loud, -1.0, 1.0)
}
