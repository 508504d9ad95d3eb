package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// ErrWindowTooShort is returned when the filtered history does not yet hold
// a full analysis window.
var ErrWindowTooShort = errors.New("dsp: history shorter than analysis window")

// FrequencyEstimate is the dominant frequency of one analysis window.
type FrequencyEstimate struct {
	FrequencyHz   float64
	RatePerMinute float64
	Bin           int
}

// SpectralEstimator finds the strongest DFT bin in the most recent
// sampleRate/resolution samples of a filtered signal.
//
// The zero-frequency bin takes part in the search like any other, so a
// filtered signal with a large baseline offset reports 0 Hz.
type SpectralEstimator struct {
	sampleRate float64
	window     int
	dft        *DFT

	in  []complex128
	out []complex128
	re  []float64
	im  []float64
	mag []float64
}

// WindowLength is the analysis window for a sample rate and frequency
// resolution (bin width), rounded to the nearest sample.
func WindowLength(sampleRate, resolution float64) int {
	if sampleRate <= 0 || resolution <= 0 {
		return 0
	}
	return int(math.Round(sampleRate / resolution))
}

// NewSpectralEstimator prepares an estimator whose bins are resolution Hz wide.
func NewSpectralEstimator(sampleRate, resolution float64) (*SpectralEstimator, error) {
	n := WindowLength(sampleRate, resolution)
	if n < 2 {
		return nil, fmt.Errorf("dsp: analysis window of %d samples (rate %v, resolution %v) is too small", n, sampleRate, resolution)
	}
	dft, err := NewDFT(n)
	if err != nil {
		return nil, err
	}
	half := n/2 + 1
	return &SpectralEstimator{
		sampleRate: sampleRate,
		window:     n,
		dft:        dft,
		in:         make([]complex128, n),
		out:        make([]complex128, n),
		re:         make([]float64, half),
		im:         make([]float64, half),
		mag:        make([]float64, half),
	}, nil
}

// WindowLen returns the number of trailing samples each estimate consumes.
func (e *SpectralEstimator) WindowLen() int { return e.window }

// BinWidth returns the spacing of adjacent bins in Hz.
func (e *SpectralEstimator) BinWidth() float64 {
	return e.sampleRate / float64(e.window)
}

// Estimate analyses the last WindowLen samples of filtered. Shorter input
// fails with ErrWindowTooShort and the caller should skip the estimate.
func (e *SpectralEstimator) Estimate(filtered []float64) (FrequencyEstimate, error) {
	if len(filtered) < e.window {
		return FrequencyEstimate{}, fmt.Errorf("%w: have %d samples, need %d", ErrWindowTooShort, len(filtered), e.window)
	}
	tail := filtered[len(filtered)-e.window:]
	for i, v := range tail {
		e.in[i] = complex(v, 0)
	}
	if err := e.dft.Transform(e.out, e.in); err != nil {
		return FrequencyEstimate{}, fmt.Errorf("dsp: spectrum: %w", err)
	}

	// Real input: |X[k]| == |X[n-k]|, so the non-negative half holds every
	// distinct magnitude and the lowest index wins ties.
	for k := range e.mag {
		e.re[k] = real(e.out[k])
		e.im[k] = imag(e.out[k])
	}
	vecmath.Magnitude(e.mag, e.re, e.im)

	best := 0
	for k, m := range e.mag {
		if m > e.mag[best] {
			best = k
		}
	}

	hz := math.Abs(BinFrequency(best, e.window, e.sampleRate))
	hz = math.Round(hz*1e4) / 1e4
	return FrequencyEstimate{
		FrequencyHz:   hz,
		RatePerMinute: 60 * hz,
		Bin:           best,
	}, nil
}
