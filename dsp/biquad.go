package dsp

import "math"

// Biquad holds one second-order section. a0 is normalized to 1.
//
// Direct Form II Transposed sign convention:
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// firstOrder reports whether the section degenerates to a first-order stage.
func (b Biquad) firstOrder() bool {
	return b.B2 == 0 && b.A2 == 0
}

// dcGain is H(z=1).
func (b Biquad) dcGain() float64 {
	den := 1 + b.A1 + b.A2
	if den == 0 {
		return 0
	}
	return (b.B0 + b.B1 + b.B2) / den
}

// steadyState returns the delay-line contents the section settles into when
// driven by a constant input of the given level.
func (b Biquad) steadyState(level float64) (d0, d1 float64) {
	y := b.dcGain() * level
	d1 = b.B2*level - b.A2*y
	d0 = b.B1*level - b.A1*y + d1
	return d0, d1
}

// run filters buf in place starting from state (d0, d1) and returns the
// final state.
func (b Biquad) run(buf []float64, d0, d1 float64) (float64, float64) {
	for i, x := range buf {
		y := b.B0*x + d0
		d0 = b.B1*x - b.A1*y + d1
		d1 = b.B2*x - b.A2*y
		buf[i] = y
	}
	return d0, d1
}

// butterworthQ returns the quality factor of section index for an analog
// Butterworth prototype of the given order.
func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))
	s := math.Sin(theta)
	if s == 0 {
		return 1 / math.Sqrt2
	}
	return 1 / (2 * s)
}

// lowpassSection is the bilinear-transformed second-order lowpass
// 1/(s^2 + s/Q + 1) prewarped at freq.
func lowpassSection(freq, q, sampleRate float64) Biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	sw := math.Sin(w0)
	cw := math.Cos(w0)
	alpha := sw / (2 * q)

	// 1-cos(w0) loses precision for very low cutoffs; use the half-angle form.
	h := math.Sin(w0 / 2)
	omc := 2 * h * h

	a0 := 1 + alpha
	return Biquad{
		B0: omc / 2 / a0,
		B1: omc / a0,
		B2: omc / 2 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}
}

// lowpassFirstOrder is the bilinear-transformed first-order lowpass used as
// the trailing stage of odd-order designs.
func lowpassFirstOrder(freq, sampleRate float64) Biquad {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)
	return Biquad{
		B0: k * norm,
		B1: k * norm,
		A1: (k - 1) * norm,
	}
}
