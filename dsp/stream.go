package dsp

// StreamFilter is a causal low-pass that carries its delay lines across
// calls, so each chunk costs O(len(chunk)) regardless of history length.
//
// Unlike Apply it is not zero-phase: the output lags the input by the
// filter's group delay. It is only a live-view alternative to re-running
// Apply over the whole history; final results always use Apply.
type StreamFilter struct {
	sections []Biquad
	state    [][2]float64
	primed   bool
}

// NewStreamFilter returns a filter with cleared state.
func NewStreamFilter(c Coefficients) *StreamFilter {
	return &StreamFilter{
		sections: c.Sections,
		state:    make([][2]float64, len(c.Sections)),
	}
}

// Process filters one chunk and returns the filtered samples. The first call
// primes the delay lines with the steady state of the first sample, matching
// Causal over the concatenated input.
func (f *StreamFilter) Process(chunk []float64) []float64 {
	out := make([]float64, len(chunk))
	copy(out, chunk)
	if len(out) == 0 {
		return out
	}
	if !f.primed {
		level := out[0]
		for i, s := range f.sections {
			d0, d1 := s.steadyState(level)
			f.state[i] = [2]float64{d0, d1}
			level *= s.dcGain()
		}
		f.primed = true
	}
	for i, s := range f.sections {
		d0, d1 := s.run(out, f.state[i][0], f.state[i][1])
		f.state[i] = [2]float64{d0, d1}
	}
	return out
}

// ProcessInt16 widens a PCM chunk and filters it.
func (f *StreamFilter) ProcessInt16(chunk []int16) []float64 {
	return f.Process(Float64s(chunk))
}
