package dsp

import "fmt"

// LocalMaxima returns the indices of every local maximum in x with no
// height, prominence or distance requirement. A sample qualifies when it is
// strictly greater than its left neighbour and greater than the next sample
// that differs from it; for a flat top the middle index (rounded down) is
// reported. The first and last samples are never peaks.
func LocalMaxima(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// PeakCountRate counts the local maxima of a filtered recording and scales
// the count to events per minute over durationSeconds.
func PeakCountRate(filtered []float64, durationSeconds float64) (float64, error) {
	if durationSeconds <= 0 {
		return 0, fmt.Errorf("dsp: duration %v must be positive", durationSeconds)
	}
	return 60 / durationSeconds * float64(len(LocalMaxima(filtered))), nil
}
