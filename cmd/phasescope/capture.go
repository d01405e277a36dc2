package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	phasescope "github.com/jotoft/loopback-visualizer-sub000"
)

var (
	captureDevice int
	captureSynth  float64
	captureFor    time.Duration
	captureRate   time.Duration
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture live audio and report phase-lock status",
	Long: `Captures audio from a device (or a synthetic sine with --synth) and
runs the phase-lock pipeline, printing lock state, correlation and transport
counters once per interval until interrupted.`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().IntVar(&captureDevice, "device", -1,
		"device index from 'phasescope devices' (-1 for default)")
	captureCmd.Flags().Float64Var(&captureSynth, "synth", 0,
		"use a synthetic sine of this frequency instead of a device")
	captureCmd.Flags().DurationVar(&captureFor, "duration", 0,
		"stop after this long (0 runs until interrupted)")
	captureCmd.Flags().DurationVar(&captureRate, "interval", time.Second,
		"status print interval")

	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	cfg.Capture.OnError = func(err error) {
		log.Printf("capture error: %v", err)
	}

	var scope *phasescope.Scope
	switch {
	case captureSynth > 0:
		scope, err = phasescope.NewSynthScope(cfg, captureSynth, 0.5)
	case captureDevice >= 0:
		scope, err = phasescope.NewDeviceScope(cfg, captureDevice)
	default:
		scope, err = phasescope.NewScope(cfg)
	}
	if err != nil {
		return err
	}

	if err := scope.Start(); err != nil {
		return err
	}
	defer scope.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var timeout <-chan time.Time
	if captureFor > 0 {
		timeout = time.After(captureFor)
	}

	// ~60 analysis frames per second, status once per interval.
	frame := time.NewTicker(time.Second / 60)
	defer frame.Stop()
	status := time.NewTicker(captureRate)
	defer status.Stop()

	log.Printf("capturing at %.0f Hz, %d channel(s); Ctrl-C to stop",
		cfg.Capture.SampleRate, cfg.Capture.Channels)

	var state phasescope.AnalyzerState
	for {
		select {
		case <-frame.C:
			state = scope.ProcessFrame(true)

		case <-status.C:
			stats := scope.Capture().Stats()
			lock := "searching"
			if state.HasLock {
				lock = "locked"
			}
			log.Printf("%-9s corr=%.3f refs=%d captured=%d overruns=%d underruns=%d",
				lock, state.BestCorrelation, scope.Analyzer().ReferenceCount(),
				stats.TotalCaptured, stats.Overruns, stats.Underruns)

		case <-sig:
			log.Printf("interrupted")
			return nil

		case <-timeout:
			return nil
		}
	}
}
