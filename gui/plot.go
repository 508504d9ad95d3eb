//go:build gui

package gui

import (
	"image/color"
	"slices"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const (
	plotPoints  = 400
	labelHeight = 22
)

var (
	colorRaw      = color.RGBA{150, 150, 150, 255}
	colorFiltered = color.RGBA{255, 175, 0, 255}
	colorLabel    = color.RGBA{200, 200, 200, 255}
)

// PlotWidget draws the raw tail above the filtered tail, with a status line
// underneath. Update may be called from any goroutine.
type PlotWidget struct {
	widget.BaseWidget
	mu       sync.Mutex
	raw      []float64
	filtered []float64
	status   string
}

func NewPlotWidget() *PlotWidget {
	p := &PlotWidget{status: "waiting for audio"}
	p.ExtendBaseWidget(p)
	return p
}

// Update replaces both traces and the status line and schedules a redraw.
func (p *PlotWidget) Update(raw []int16, filtered []float64, status string) {
	rawF := make([]float64, len(raw))
	for i, v := range raw {
		rawF[i] = float64(v)
	}
	p.mu.Lock()
	p.raw = rawF
	p.filtered = slices.Clone(filtered)
	p.status = status
	p.mu.Unlock()
	fyne.Do(p.Refresh)
}

func (p *PlotWidget) MinSize() fyne.Size {
	return fyne.NewSize(640, 420)
}

func (p *PlotWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &plotRenderer{
		plot:     p,
		raw:      newTrace("raw", colorRaw),
		filtered: newTrace("filtered", colorFiltered),
		status:   canvas.NewText("", colorLabel),
	}
	r.status.TextStyle = fyne.TextStyle{Monospace: true}
	return r
}

// trace is one labelled polyline with a fixed pool of segments.
type trace struct {
	label *canvas.Text
	lines []*canvas.Line
}

func newTrace(name string, c color.Color) *trace {
	t := &trace{label: canvas.NewText(name, colorLabel)}
	t.lines = make([]*canvas.Line, plotPoints-1)
	for i := range t.lines {
		l := canvas.NewLine(c)
		l.StrokeWidth = 1.5
		l.Hide()
		t.lines[i] = l
	}
	return t
}

// draw lays the trace out in the box at origin with the given size. Segments
// beyond the current point count stay hidden.
func (t *trace) draw(ys []float64, origin fyne.Position, size fyne.Size) {
	t.label.Move(origin)
	plotH := size.Height - labelHeight
	pts := Points(ys, size.Width, plotH, plotPoints)
	for i, l := range t.lines {
		if i+1 >= len(pts) {
			l.Hide()
			continue
		}
		l.Position1 = fyne.NewPos(origin.X+pts[i].X, origin.Y+labelHeight+pts[i].Y)
		l.Position2 = fyne.NewPos(origin.X+pts[i+1].X, origin.Y+labelHeight+pts[i+1].Y)
		l.Show()
		l.Refresh()
	}
}

func (t *trace) visible() int {
	n := 0
	for _, l := range t.lines {
		if l.Visible() {
			n++
		}
	}
	return n
}

type plotRenderer struct {
	plot     *PlotWidget
	raw      *trace
	filtered *trace
	status   *canvas.Text
	size     fyne.Size
}

func (r *plotRenderer) Layout(size fyne.Size) {
	r.size = size
	r.Refresh()
}

func (r *plotRenderer) MinSize() fyne.Size {
	return r.plot.MinSize()
}

func (r *plotRenderer) Refresh() {
	r.plot.mu.Lock()
	raw, filtered, status := r.plot.raw, r.plot.filtered, r.plot.status
	r.plot.mu.Unlock()

	half := fyne.NewSize(r.size.Width, (r.size.Height-labelHeight)/2)
	r.raw.draw(raw, fyne.NewPos(0, 0), half)
	r.filtered.draw(filtered, fyne.NewPos(0, half.Height), half)

	r.status.Text = status
	r.status.Move(fyne.NewPos(0, r.size.Height-labelHeight))
	r.status.Refresh()
}

func (r *plotRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, 2*plotPoints+1)
	for _, t := range []*trace{r.raw, r.filtered} {
		objs = append(objs, t.label)
		for _, l := range t.lines {
			objs = append(objs, l)
		}
	}
	return append(objs, r.status)
}

func (r *plotRenderer) Destroy() {}
