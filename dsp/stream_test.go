package dsp

import (
	"math"
	"testing"
)

func TestStreamFilterMatchesCausal(t *testing.T) {
	c := mustDesign(t, FilterSpec{Cutoff: 0.5, SampleRate: 1000, Order: 5})
	x := sine(0.3, 1000, 800, 3000)
	for i := range x {
		x[i] += 200 + 50*math.Sin(float64(i)*1.3)
	}
	want := Causal(c, x)

	f := NewStreamFilter(c)
	var got []float64
	for off := 0; off < len(x); off += 128 {
		end := min(off+128, len(x))
		got = append(got, f.Process(x[off:end])...)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d: %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStreamFilterInt16Chunks(t *testing.T) {
	c := mustDesign(t, FilterSpec{Cutoff: 50, SampleRate: 1000, Order: 4})
	chunk := []int16{100, 200, -300, 400, 0, 7}

	got := NewStreamFilter(c).ProcessInt16(chunk)
	want := NewStreamFilter(c).Process(Float64s(chunk))
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStreamFilterEmptyChunk(t *testing.T) {
	c := mustDesign(t, FilterSpec{Cutoff: 0.5, SampleRate: 1000, Order: 5})
	f := NewStreamFilter(c)
	if out := f.Process(nil); len(out) != 0 {
		t.Errorf("got %d samples for empty chunk", len(out))
	}
}
