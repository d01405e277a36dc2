// Command phasescope captures audio and tracks the phase of a repeating
// waveform in it, printing lock quality and transport statistics.
//
// Usage:
//
//	phasescope devices                   # list capture devices
//	phasescope capture                   # live capture from the default device
//	phasescope capture --device 3        # live capture from device index 3
//	phasescope capture --synth 440       # synthetic sine source, no hardware
//	phasescope analyze recording.wav     # offline analysis of a WAV file
//
// Settings can also come from a YAML config file (--config, default
// ~/.config/phasescope.yaml) or PHASESCOPE_* environment variables; flags
// win over both.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	phasescope "github.com/jotoft/loopback-visualizer-sub000"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "phasescope",
	Short: "Phase-locked audio capture and waveform tracking",
	Long: `phasescope captures audio from an input device, conditions it with a
filter chain and continuously re-synchronizes a read cursor to the position
where the waveform best matches a tracked reference template. The result is
a phase-stable view of any repeating signal: a held note, a test tone, a
loopback of your own output.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default ~/.config/phasescope.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.PersistentFlags().Float64("sample-rate", phasescope.DefaultCaptureConfig().SampleRate,
		"capture sample rate in Hz")
	rootCmd.PersistentFlags().Int("channels", phasescope.DefaultCaptureConfig().Channels,
		"capture channels (1 or 2; stereo is downmixed)")
	rootCmd.PersistentFlags().Int("frames-per-block", phasescope.DefaultCaptureConfig().FramesPerBlock,
		"device frames per blocking read")

	rootCmd.PersistentFlags().Float32("threshold", phasescope.DefaultAnalyzerConfig().CorrelationThreshold,
		"correlation threshold for accepting a match")
	rootCmd.PersistentFlags().Float32("smoothing", phasescope.DefaultAnalyzerConfig().PhaseSmoothing,
		"phase smoothing factor in [0,1)")
	rootCmd.PersistentFlags().String("reference-mode", "accumulator",
		"reference blend policy: accumulator or ema")
	rootCmd.PersistentFlags().Bool("band-filter", false,
		"correlate on a band-limited copy of the signal")
	rootCmd.PersistentFlags().Float64("band-low", phasescope.DefaultAnalyzerConfig().BandLowHz,
		"correlation band lower edge in Hz")
	rootCmd.PersistentFlags().Float64("band-high", phasescope.DefaultAnalyzerConfig().BandHighHz,
		"correlation band upper edge in Hz")
	rootCmd.PersistentFlags().Bool("filter", true,
		"run the high-pass/low-pass filter chain before analysis")

	for _, name := range []string{
		"sample-rate", "channels", "frames-per-block",
		"threshold", "smoothing", "reference-mode",
		"band-filter", "band-low", "band-high", "filter",
	} {
		mustBindFlag(name)
	}
}

func mustBindFlag(name string) {
	if err := viper.BindPFlag(configKey(name), rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

// configKey maps a flag name to its config file key: sample-rate becomes
// sample_rate.
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("phasescope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PHASESCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "using config file %s\n", viper.ConfigFileUsed())
	}
}

// buildConfig assembles the pipeline configuration from defaults overridden
// by config file, environment and flags.
func buildConfig() (phasescope.Config, error) {
	cfg := phasescope.DefaultConfig()

	cfg.Capture.SampleRate = viper.GetFloat64("sample_rate")
	cfg.Capture.Channels = viper.GetInt("channels")
	cfg.Capture.FramesPerBlock = viper.GetInt("frames_per_block")

	cfg.Analyzer.CorrelationThreshold = float32(viper.GetFloat64("threshold"))
	cfg.Analyzer.PhaseSmoothing = float32(viper.GetFloat64("smoothing"))
	cfg.Analyzer.UseFrequencyFilter = viper.GetBool("band_filter")
	cfg.Analyzer.BandLowHz = viper.GetFloat64("band_low")
	cfg.Analyzer.BandHighHz = viper.GetFloat64("band_high")
	cfg.Analyzer.SampleRate = cfg.Capture.SampleRate

	cfg.Filter.SampleRate = cfg.Capture.SampleRate
	cfg.EnableFilter = viper.GetBool("filter")

	switch mode := viper.GetString("reference_mode"); mode {
	case "accumulator", "":
		cfg.Analyzer.Mode = phasescope.ReferenceAccumulator
	case "ema":
		cfg.Analyzer.Mode = phasescope.ReferenceEMA
	default:
		return cfg, fmt.Errorf("unknown reference mode %q", mode)
	}

	return cfg, cfg.Validate()
}
