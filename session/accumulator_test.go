package session

import (
	"slices"
	"testing"
)

func TestAccumulatorAppend(t *testing.T) {
	a := NewAccumulator(4)
	a.Append([]int16{1, 2})
	a.Append([]int16{3, 4, 5})
	if a.Len() != 5 {
		t.Fatalf("Len = %d, want 5", a.Len())
	}
	if got := a.Snapshot(); !slices.Equal(got, []int16{1, 2, 3, 4, 5}) {
		t.Errorf("Snapshot = %v", got)
	}
}

func TestSnapshotStable(t *testing.T) {
	a := NewAccumulator(16)
	a.Append([]int16{1, 2, 3})
	snap := a.Snapshot()
	a.Append([]int16{9, 9})
	_ = append(snap, 7)
	if !slices.Equal(snap, []int16{1, 2, 3}) {
		t.Errorf("snapshot changed: %v", snap)
	}
	if got := a.Snapshot(); !slices.Equal(got, []int16{1, 2, 3, 9, 9}) {
		t.Errorf("history = %v", got)
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	a := NewAccumulator(-1)
	if a.Len() != 0 || len(a.Snapshot()) != 0 {
		t.Error("new accumulator not empty")
	}
}
