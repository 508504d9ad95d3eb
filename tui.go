package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"respire/dsp"
	"respire/log"
	"respire/session"
)

// view draws session progress and owns the goroutine layout of a run.
type view interface {
	session.Renderer
	run(ctx context.Context, sess *session.Session) (*session.Result, error)
}

type viewInfo struct {
	gui        bool
	device     string
	live       bool
	sampleRate int
	duration   float64
	window     float64 // seconds of signal one spectral estimate needs
}

// newView picks the desktop window when asked for, the terminal UI when
// stdout is a terminal and plain progress lines otherwise.
func newView(stdout, stderr io.Writer, info viewInfo) (view, error) {
	if info.gui {
		return newGUIView(info)
	}
	if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return newTUIView(f, info), nil
	}
	return &lineView{w: stderr, info: info}, nil
}

// loggingRenderer writes per-iteration diagnostics before handing the frame on.
type loggingRenderer struct {
	next session.Renderer
}

func (r loggingRenderer) Render(f session.Frame) {
	if f.HasEstimate {
		log.Iteration(f.Iteration, f.Estimate.RatePerMinute, f.Analysis)
	}
	if f.Dropped > 0 {
		log.Overflow(f.Dropped)
	}
	switch f.LevelEvent {
	case session.LevelFlat, session.LevelStillFlat:
		log.Warnf("input level flat (rms %.5f) at iteration %d", f.Level, f.Iteration)
	case session.LevelRestored:
		log.Info("input level restored")
	}
	if r.next != nil {
		r.next.Render(f)
	}
}

// lineView prints one line per estimate and per warning.
type lineView struct {
	w    io.Writer
	info viewInfo
}

func (v *lineView) Render(f session.Frame) {
	if f.HasEstimate {
		fmt.Fprintf(v.w, "[%*d/%d] major peak: %s Hz, %s per minute\n",
			len(fmt.Sprint(f.Iterations)), f.Iteration, f.Iterations,
			trimFloat(f.Estimate.FrequencyHz), trimFloat(f.Estimate.RatePerMinute))
	}
	if f.Dropped > 0 {
		fmt.Fprintf(v.w, "warning: dropped %d input samples\n", f.Dropped)
	}
	switch f.LevelEvent {
	case session.LevelFlat:
		fmt.Fprintln(v.w, "warning: no signal for 8s, check the microphone")
	case session.LevelStillFlat:
		fmt.Fprintln(v.w, "warning: still no signal")
	case session.LevelRestored:
		fmt.Fprintln(v.w, "signal restored")
	}
}

func (v *lineView) run(ctx context.Context, sess *session.Session) (*session.Result, error) {
	return sess.Run(ctx)
}

// TUI messages
type frameMsg session.Frame
type doneMsg struct {
	res *session.Result
	err error
}
type tickMsg time.Time

type tuiView struct {
	program *tea.Program
}

func newTUIView(out *os.File, info viewInfo) *tuiView {
	m := tuiModel{info: info, rate: math.NaN()}
	return &tuiView{program: tea.NewProgram(m, tea.WithOutput(out))}
}

func (v *tuiView) Render(f session.Frame) {
	v.program.Send(frameMsg(f))
}

// run drives the UI and the session side by side. Quitting the UI stops the
// session at its next iteration boundary; the session finishing quits the UI.
func (v *tuiView) run(ctx context.Context, sess *session.Session) (*session.Result, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		res    *session.Result
		runErr error
		g      errgroup.Group
	)
	g.Go(func() error {
		_, err := v.program.Run()
		stop()
		if err != nil {
			return fmt.Errorf("terminal UI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		res, runErr = sess.Run(runCtx)
		v.program.Send(doneMsg{res: res, err: runErr})
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("%v", err)
	}
	return res, runErr
}

type tuiModel struct {
	info          viewInfo
	width, height int
	anim          int

	frame    session.Frame
	level    float64 // smoothed chunk RMS
	rate     float64 // last live estimate, NaN before the first
	hz       float64
	dropped  uint64
	stopping bool
	done     bool
	err      error
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.stopping = true
			return m, tea.Quit
		}

	case tickMsg:
		m.anim++
		if m.done {
			return m, nil
		}
		return m, tuiTick()

	case frameMsg:
		f := session.Frame(msg)
		m.frame = f
		m.level = m.level*0.6 + f.Level*0.4
		m.dropped += f.Dropped
		if f.HasEstimate {
			m.rate = f.Estimate.RatePerMinute
			m.hz = f.Estimate.FrequencyHz
		}

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	recStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	rateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	rawStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	filtStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

func (m tuiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	plotWidth := max(width-12, 10)

	var lines []string
	lines = append(lines, titleStyle.Render("respire "+version)+"  "+dimStyle.Render("mic: "+m.info.device))
	lines = append(lines, "")

	elapsed := 0.0
	if m.info.sampleRate > 0 {
		elapsed = float64(m.frame.Samples) / float64(m.info.sampleRate)
	}
	status := recStyle.Render("● REC")
	switch {
	case m.done:
		status = dimStyle.Render("○ DONE")
	case m.stopping:
		status = warnStyle.Render("◌ STOPPING")
	case m.anim%10 >= 5:
		status = recStyle.Render("○ REC")
	}
	lines = append(lines, fmt.Sprintf("%s %5.1fs / %.1fs  %s  %d/%d",
		status, elapsed, m.info.duration,
		progressBar(m.frame.Iteration, m.frame.Iterations, min(plotWidth-30, 40)),
		m.frame.Iteration, m.frame.Iterations))
	lines = append(lines, dimStyle.Render("level  ")+levelBar(m.level, 30))

	if m.info.live {
		switch {
		case !math.IsNaN(m.rate):
			lines = append(lines, dimStyle.Render("rate   ")+
				rateStyle.Render(fmt.Sprintf("%s per minute", trimFloat(m.rate)))+
				dimStyle.Render(fmt.Sprintf("  (%s Hz)", trimFloat(m.hz))))
		default:
			lines = append(lines, dimStyle.Render(fmt.Sprintf("rate   collecting %.1fs of signal (%.1fs so far)", m.info.window, elapsed)))
		}
		lines = append(lines, "")
		lines = append(lines, dimStyle.Render("raw    ")+rawStyle.Render(sparkline(dsp.Float64s(m.frame.RawTail), plotWidth)))
		lines = append(lines, dimStyle.Render("low    ")+filtStyle.Render(sparkline(m.frame.Filtered, plotWidth)))
	}

	lines = append(lines, "")
	if m.frame.Flat {
		lines = append(lines, warnStyle.Render("⚠ no signal for 8s, check the microphone"))
	}
	if m.dropped > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("⚠ dropped %d input samples", m.dropped)))
	}
	if m.err != nil {
		lines = append(lines, warnStyle.Render("error: "+m.err.Error()))
	}
	if !m.done {
		lines = append(lines, helpStyle.Render("q to stop early"))
	}
	return strings.Join(lines, "\n") + "\n"
}

func progressBar(done, total, width int) string {
	if width < 1 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = min(done*width/total, width)
	}
	return barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

func levelBar(level float64, width int) string {
	// -60 dBFS .. 0 dBFS
	frac := 0.0
	if level > 0 {
		frac = (20*math.Log10(level) + 60) / 60
	}
	frac = math.Max(0, math.Min(1, frac))
	n := int(math.Round(frac * float64(width)))
	return barStyle.Render(strings.Repeat("▮", n)) + dimStyle.Render(strings.Repeat("·", width-n))
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline squeezes x into width columns, one column per bucket mean,
// scaled between the minimum and maximum of the buckets.
func sparkline(x []float64, width int) string {
	if len(x) == 0 || width <= 0 {
		return ""
	}
	cols := min(width, len(x))
	means := make([]float64, cols)
	for c := range means {
		lo := c * len(x) / cols
		hi := (c + 1) * len(x) / cols
		var sum float64
		for _, v := range x[lo:hi] {
			sum += v
		}
		means[c] = sum / float64(hi-lo)
	}
	minV, maxV := means[0], means[0]
	for _, v := range means {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	var b strings.Builder
	for _, v := range means {
		idx := 0
		if maxV > minV {
			idx = int((v - minV) / (maxV - minV) * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// trimFloat prints up to four decimals without trailing zeros.
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
