// Package gui draws a running session in a desktop window: the raw and
// filtered signal tails and the latest rate. Everything but the point
// scaling needs the gui build tag.
package gui

import "math"

// Point is a vertex of a trace in widget coordinates.
type Point struct {
	X, Y float32
}

// Points scales ys into a width x height box, largest value at the top. When
// ys has more than maxPoints samples it is decimated by an even stride that
// keeps the last sample. A flat trace is drawn along the middle.
func Points(ys []float64, width, height float32, maxPoints int) []Point {
	if len(ys) == 0 || maxPoints < 2 {
		return nil
	}
	n := min(len(ys), maxPoints)
	stride := float64(len(ys)-1) / float64(max(n-1, 1))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, y := range ys {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}

	pts := make([]Point, n)
	for i := range pts {
		idx := len(ys) - 1
		if i < n-1 {
			idx = int(math.Round(float64(i) * stride))
		}
		frac := 0.5
		if hi > lo {
			frac = (ys[idx] - lo) / (hi - lo)
		}
		x := float32(0)
		if n > 1 {
			x = width * float32(i) / float32(n-1)
		}
		pts[i] = Point{X: x, Y: height * float32(1-frac)}
	}
	return pts
}
