//go:build gui

package gui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
)

func TestPlotWidgetDrawsTraces(t *testing.T) {
	test.NewTempApp(t)

	p := NewPlotWidget()
	r := test.TempWidgetRenderer(t, p).(*plotRenderer)
	r.Layout(fyne.NewSize(640, 420))
	if n := r.raw.visible(); n != 0 {
		t.Fatalf("empty plot shows %d raw segments", n)
	}

	raw := make([]int16, 1000)
	filtered := make([]float64, 50)
	for i := range raw {
		raw[i] = int16(i)
	}
	for i := range filtered {
		filtered[i] = float64(i % 7)
	}
	p.Update(raw, filtered, "18 per minute")
	r.Refresh()

	if n := r.raw.visible(); n != plotPoints-1 {
		t.Errorf("raw segments = %d, want %d", n, plotPoints-1)
	}
	if n := r.filtered.visible(); n != len(filtered)-1 {
		t.Errorf("filtered segments = %d, want %d", n, len(filtered)-1)
	}
	if r.status.Text != "18 per minute" {
		t.Errorf("status = %q", r.status.Text)
	}
	if len(r.Objects()) != 2*plotPoints+1 {
		t.Errorf("objects = %d", len(r.Objects()))
	}
}
