// Package doctor runs the system checks behind -doctor: log directory,
// audio backend, a short microphone capture and a synthetic pipeline run.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"respire/audio"
	"respire/dsp"
	"respire/session"
)

type Options struct {
	// Context is the audio backend; nil opens the platform one.
	Context audio.Context

	// Device is the host index to record from; negative picks the first
	// input device.
	Device int

	LogDir     string
	SampleRate int
	ChunkSize  int
	Seconds    float64
	Filter     dsp.FilterSpec
	Resolution float64 // spectral bin width in Hz
}

type check struct {
	name string
	run  func(*Options) (string, error)
}

// Run executes every check in order and returns an exit code (0=all pass,
// 1=any fail). Checks after a failed audio backend check are skipped.
func Run(w io.Writer, opts Options) int {
	fmt.Fprintln(w, "respire doctor - system diagnostics")
	fmt.Fprintln(w, "===================================")

	if opts.Seconds <= 0 {
		opts.Seconds = 3
	}

	checks := []check{
		{"Log directory", checkLogDir},
		{"Audio backend", checkBackend},
		{"Microphone", checkMicrophone},
		{"Signal pipeline", checkPipeline},
	}

	allPass := true
	backendOK := true
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if c.name == "Microphone" && !backendOK {
			fmt.Fprintln(w, "  SKIP: no audio backend")
			continue
		}
		detail, err := c.run(&opts)
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			allPass = false
			if c.name == "Audio backend" {
				backendOK = false
			}
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", detail)
	}

	if opts.Context != nil {
		opts.Context.Close()
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func checkLogDir(o *Options) (string, error) {
	if o.LogDir == "" {
		return "", errors.New("no log directory resolved")
	}
	if err := os.MkdirAll(o.LogDir, 0755); err != nil {
		return "", err
	}
	marker := filepath.Join(o.LogDir, ".doctor_write")
	if err := os.WriteFile(marker, []byte("ok"), 0644); err != nil {
		return "", fmt.Errorf("not writable: %w", err)
	}
	os.Remove(marker)
	return o.LogDir, nil
}

func checkBackend(o *Options) (string, error) {
	if o.Context == nil {
		ctx, err := audio.NewContext()
		if err != nil {
			return "", err
		}
		o.Context = ctx
	}
	devices, err := audio.InputDevices(o.Context)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", audio.ErrNoDevice
	}
	if o.Device < 0 {
		o.Device = devices[0].Index
	}
	return fmt.Sprintf("%d input device(s)", len(devices)), nil
}

// checkMicrophone records for a few seconds and reports the input level.
func checkMicrophone(o *Options) (string, error) {
	dev, err := audio.DeviceByIndex(o.Context, o.Device)
	if err != nil {
		return "", err
	}
	capture, err := o.Context.NewCapture(dev, audio.CaptureConfig{
		SampleRate:  uint32(o.SampleRate),
		Channels:    1,
		ChunkFrames: uint32(o.ChunkSize),
	})
	if err != nil {
		return "", err
	}
	reader, err := audio.NewChunkReader(capture, audio.ReaderConfig{
		ChunkSize:   o.ChunkSize,
		ReadTimeout: 2 * time.Second,
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	chunks := max(int(float64(o.SampleRate)/float64(o.ChunkSize)*o.Seconds), 1)
	var peak, sum float64
	for i := 0; i < chunks; i++ {
		chunk, err := reader.NextChunk()
		if err != nil {
			return "", fmt.Errorf("%s: %w", dev.Name, err)
		}
		level := session.ChunkLevel(chunk)
		peak = math.Max(peak, level)
		sum += level
	}
	mean := sum / float64(chunks)
	if peak < session.DefaultFlatLevel {
		return "", fmt.Errorf("%s: no signal (peak level %.5f), check that the microphone is not muted", dev.Name, peak)
	}
	detail := fmt.Sprintf("%s: mean level %.4f, peak %.4f", dev.Name, mean, peak)
	if d := reader.Dropped(); d > 0 {
		detail += fmt.Sprintf(", %d samples dropped", d)
	}
	return detail, nil
}

// checkPipeline feeds a synthetic 18 per minute signal through the filter
// and both estimators.
func checkPipeline(o *Options) (string, error) {
	const freq = 0.3
	if o.Resolution <= 0 {
		return "", fmt.Errorf("frequency resolution %v must be positive", o.Resolution)
	}
	// long enough for two analysis windows and a dozen breaths
	secs := max(40, int(math.Ceil(2/o.Resolution)))
	spec := o.Filter
	rate := int(spec.SampleRate)
	coeffs, err := dsp.Design(spec)
	if err != nil {
		return "", err
	}
	x := make([]float64, rate*secs)
	for i := range x {
		x[i] = 8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	filtered, err := dsp.Apply(coeffs, x)
	if err != nil {
		return "", err
	}
	peaks, err := dsp.PeakCountRate(filtered, float64(secs))
	if err != nil {
		return "", err
	}
	if math.Abs(peaks-60*freq) > 1.5 {
		return "", fmt.Errorf("peak count rate %.2f, want %.0f", peaks, 60*freq)
	}
	est, err := dsp.NewSpectralEstimator(float64(rate), o.Resolution)
	if err != nil {
		return "", err
	}
	spectral, err := est.Estimate(filtered)
	if err != nil {
		return "", err
	}
	if math.Abs(spectral.FrequencyHz-freq) > est.BinWidth() {
		return "", fmt.Errorf("spectral peak %.4f Hz, want %.2f Hz", spectral.FrequencyHz, freq)
	}
	return fmt.Sprintf("%.0f per minute by peaks, %.4f Hz by spectrum (%.4f Hz bins)", peaks, spectral.FrequencyHz, est.BinWidth()), nil
}
