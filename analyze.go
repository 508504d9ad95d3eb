package main

import (
	"errors"
	"fmt"
	"io"

	"respire/config"
	"respire/dsp"
	"respire/log"
	"respire/store"
)

// analyzeFile runs the final filter and peak count on an existing recording.
// The duration is taken from the sample count, and the spectral estimate of
// the last window is printed when the recording is long enough.
func analyzeFile(w io.Writer, cfg config.Config, path string) error {
	samples, rate, err := readWAV(path)
	if err != nil {
		return err
	}
	if rate <= 0 || len(samples) == 0 {
		return fmt.Errorf("%s: empty recording", path)
	}
	cfg.SampleRate = rate

	coeffs, err := dsp.Design(cfg.FilterSpec())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", config.ErrUsage, path, err)
	}
	filtered, err := dsp.ApplyInt16(coeffs, samples)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	duration := float64(len(samples)) / float64(rate)
	rr, err := dsp.PeakCountRate(filtered, duration)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d samples at %d Hz (%.2fs)\n", path, len(samples), rate, duration)
	fmt.Fprintf(w, "peak count rate: %s per minute\n", store.FormatFloat(rr))

	est, err := dsp.NewSpectralEstimator(float64(rate), cfg.Resolution)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrUsage, err)
	}
	switch peak, err := est.Estimate(filtered); {
	case errors.Is(err, dsp.ErrWindowTooShort):
		fmt.Fprintf(w, "spectral estimate: skipped, recording shorter than %.1fs window\n", float64(est.WindowLen())/float64(rate))
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "spectral estimate: %s Hz, %s per minute\n", trimFloat(peak.FrequencyHz), trimFloat(peak.RatePerMinute))
	}

	log.Rate(rr, "analyze:"+path)
	return nil
}
