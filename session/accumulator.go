package session

// Accumulator is the append-only sample history of one session.
type Accumulator struct {
	buf []int16
}

// NewAccumulator reserves room for capacity samples.
func NewAccumulator(capacity int) *Accumulator {
	return &Accumulator{buf: make([]int16, 0, max(capacity, 0))}
}

// Append adds a chunk to the end of the history.
func (a *Accumulator) Append(chunk []int16) {
	a.buf = append(a.buf, chunk...)
}

// Snapshot returns the history so far. The slice is capped at its length,
// so later appends never write into it; callers must not modify it.
func (a *Accumulator) Snapshot() []int16 {
	return a.buf[:len(a.buf):len(a.buf)]
}

func (a *Accumulator) Len() int { return len(a.buf) }
