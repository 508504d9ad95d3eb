// Package dsp holds the signal-processing core: Butterworth low-pass design,
// zero-phase and streaming filtering, spectral rate estimation and
// time-domain peak counting.
package dsp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSpec is returned when a FilterSpec violates its invariants.
	ErrInvalidSpec = errors.New("dsp: invalid filter spec")

	// ErrTooShort is returned when a sequence is too short to be filtered
	// without the edge padding running off the data.
	ErrTooShort = errors.New("dsp: sequence too short to filter")
)

// FilterSpec describes a Butterworth low-pass design.
type FilterSpec struct {
	Cutoff     float64 // Hz
	SampleRate float64 // Hz
	Order      int
}

// Validate checks the Nyquist and order invariants.
func (s FilterSpec) Validate() error {
	switch {
	case s.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %v must be positive", ErrInvalidSpec, s.SampleRate)
	case s.Cutoff <= 0:
		return fmt.Errorf("%w: cutoff %v must be positive", ErrInvalidSpec, s.Cutoff)
	case s.SampleRate <= 2*s.Cutoff:
		return fmt.Errorf("%w: sample rate %v must exceed twice the cutoff %v", ErrInvalidSpec, s.SampleRate, s.Cutoff)
	case s.Order < 1:
		return fmt.Errorf("%w: order %d must be at least 1", ErrInvalidSpec, s.Order)
	}
	return nil
}

// Normalized returns the cutoff as a fraction of Nyquist.
func (s FilterSpec) Normalized() float64 {
	return s.Cutoff / (s.SampleRate / 2)
}

// Coefficients is a designed filter: a cascade of second-order sections,
// the last one first-order for odd orders.
type Coefficients struct {
	Spec     FilterSpec
	Sections []Biquad
}

// Design computes the Butterworth low-pass cascade for spec. It is a pure
// function of spec.
func Design(spec FilterSpec) (Coefficients, error) {
	if err := spec.Validate(); err != nil {
		return Coefficients{}, err
	}

	sections := make([]Biquad, 0, (spec.Order+1)/2)
	for i := spec.Order/2 - 1; i >= 0; i-- {
		q := butterworthQ(spec.Order, i)
		sections = append(sections, lowpassSection(spec.Cutoff, q, spec.SampleRate))
	}
	if spec.Order%2 != 0 {
		sections = append(sections, lowpassFirstOrder(spec.Cutoff, spec.SampleRate))
	}
	return Coefficients{Spec: spec, Sections: sections}, nil
}

// PadLen is the number of samples reflected onto each edge before the
// forward-backward pass: three times the number of filter taps.
func (c Coefficients) PadLen() int {
	return 3 * (c.Spec.Order + 1)
}

// MinLength is the shortest sequence Apply accepts.
func (c Coefficients) MinLength() int {
	return c.PadLen() + 1
}

// Apply runs the filter forward and then backward over x, cancelling the
// phase response. The result has the same length as x and x is not modified.
//
// Edges are extended by odd reflection and each pass starts from the
// steady-state delay line for its first sample, which keeps start-up
// transients out of the output. Sequences shorter than MinLength fail with
// ErrTooShort.
func Apply(c Coefficients, x []float64) ([]float64, error) {
	if len(c.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections designed", ErrInvalidSpec)
	}
	pad := c.PadLen()
	if len(x) <= pad {
		return nil, fmt.Errorf("%w: have %d samples, need at least %d", ErrTooShort, len(x), pad+1)
	}

	ext := oddExtend(x, pad)
	c.cascade(ext, ext[0])
	reverse(ext)
	c.cascade(ext, ext[0])
	reverse(ext)

	out := make([]float64, len(x))
	copy(out, ext[pad:pad+len(x)])
	return out, nil
}

// ApplyInt16 casts PCM samples to float64 and calls Apply.
func ApplyInt16(c Coefficients, samples []int16) ([]float64, error) {
	return Apply(c, Float64s(samples))
}

// Causal runs a single forward pass over x, primed with the steady state of
// x[0]. It shares Apply's arithmetic but keeps the filter's phase lag.
func Causal(c Coefficients, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	if len(out) > 0 {
		c.cascade(out, out[0])
	}
	return out
}

// cascade filters buf in place through every section, each primed for a
// constant input equal to level scaled by the DC gain of the stages before it.
func (c Coefficients) cascade(buf []float64, level float64) {
	for _, s := range c.Sections {
		d0, d1 := s.steadyState(level)
		s.run(buf, d0, d1)
		level *= s.dcGain()
	}
}

// Float64s widens PCM samples.
func Float64s(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

// Int16s rounds to the nearest integer and clips to the PCM16 range.
func Int16s(x []float64) []int16 {
	out := make([]int16, len(x))
	for i, v := range x {
		out[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
	}
	return out
}

func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, n+2*pad)
	first, last := x[0], x[n-1]
	for i := 0; i < pad; i++ {
		ext[i] = 2*first - x[pad-i]
		ext[pad+n+i] = 2*last - x[n-2-i]
	}
	copy(ext[pad:], x)
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
