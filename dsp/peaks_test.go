package dsp

import (
	"math"
	"reflect"
	"testing"
)

func TestLocalMaxima(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want []int
	}{
		{"empty", nil, nil},
		{"flat", []float64{1, 1, 1, 1}, nil},
		{"single", []float64{0, 1, 0}, []int{1}},
		{"edges ignored", []float64{5, 1, 5}, nil},
		{"plateau midpoint", []float64{0, 2, 2, 2, 0}, []int{2}},
		{"even plateau rounds down", []float64{0, 2, 2, 0}, []int{1}},
		{"plateau into edge", []float64{0, 2, 2}, nil},
		{"shoulder", []float64{0, 2, 2, 3, 0}, []int{3}},
		{"mixed", []float64{0, 1, 0, 2, 2, 0, 3}, []int{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalMaxima(tt.x); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LocalMaxima(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestPeakCountRate(t *testing.T) {
	// 3 Hz over 2 s at 100 Hz: crests at (0.25+j)/3 s, six of them.
	x := sine(3, 100, 1, 200)
	got, err := PeakCountRate(x, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != 180 {
		t.Errorf("rate = %v, want 180", got)
	}
}

func TestPeakCountRateZero(t *testing.T) {
	got, err := PeakCountRate(make([]float64, 1000), 20)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("rate = %v, want 0", got)
	}
}

func TestPeakCountRateBadDuration(t *testing.T) {
	for _, d := range []float64{0, -1, math.Inf(-1)} {
		if _, err := PeakCountRate([]float64{0, 1, 0}, d); err == nil {
			t.Errorf("duration %v: expected error", d)
		}
	}
}
