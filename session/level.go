package session

import (
	"math"
	"time"
)

const (
	flatWarnAfter    = 8 * time.Second
	activeMinRatio   = 0.10
	activeClearRatio = 0.25 // higher threshold to clear the warning (hysteresis)

	// DefaultFlatLevel is the chunk RMS, as a fraction of full scale, below
	// which a chunk counts as flat.
	DefaultFlatLevel = 1e-3
)

type LevelEvent int

const (
	LevelNone      LevelEvent = iota
	LevelFlat                 // input has been flat for flatWarnAfter
	LevelRestored             // signal came back after a warning
	LevelStillFlat            // repeated every flatWarnAfter while flat
)

func (e LevelEvent) String() string {
	switch e {
	case LevelFlat:
		return "flat"
	case LevelRestored:
		return "restored"
	case LevelStillFlat:
		return "still_flat"
	}
	return "none"
}

// levelMonitor watches per-chunk RMS for a dead or muted microphone.
type levelMonitor struct {
	threshold float64
	warnAt    int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func newLevelMonitor(chunk time.Duration, threshold float64) *levelMonitor {
	warnAt := 1
	if chunk > 0 {
		warnAt = max(int(math.Ceil(float64(flatWarnAfter)/float64(chunk))), 1)
	}
	return &levelMonitor{
		threshold: threshold,
		warnAt:    warnAt,
		window:    make([]bool, warnAt),
	}
}

func (m *levelMonitor) activeRatio() float64 {
	n := min(m.ticks, m.warnAt)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.warnAt)%m.warnAt] {
			count++
		}
	}
	return float64(count) / float64(n)
}

// Tick records one chunk level and reports a state change, if any.
func (m *levelMonitor) Tick(level float64) LevelEvent {
	m.window[m.ticks%m.warnAt] = level >= m.threshold
	m.ticks++

	r := m.activeRatio()

	if m.ticks >= m.warnAt && r < activeMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return LevelFlat
	}
	if m.warned && r >= activeClearRatio {
		m.warned = false
		return LevelRestored
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return LevelStillFlat
	}
	return LevelNone
}

// Flat reports whether the flat-input warning is active.
func (m *levelMonitor) Flat() bool { return m.warned }

// ChunkLevel is the RMS of a chunk as a fraction of full scale.
func ChunkLevel(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range chunk {
		v := float64(s) / 32768.0
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(chunk)))
}
