// Package session runs one recording: a fixed number of chunk reads with
// optional live spectral estimates, followed by a zero-phase filter and peak
// count over the whole recording.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"respire/dsp"
	"respire/observe"
)

// ErrReused is returned by Run on a session that has already run.
var ErrReused = errors.New("session: already run")

type State int

const (
	Idle State = iota
	Capturing
	Finalizing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config is fixed for the lifetime of a session.
type Config struct {
	SampleRate int
	Duration   float64 // seconds
	ChunkSize  int
	Filter     dsp.FilterSpec
	Resolution float64 // Hz per spectral bin
	Live       bool
	Streaming  bool // live view uses the causal streaming filter
}

// Iterations is floor(SampleRate / ChunkSize * Duration).
func (c Config) Iterations() int {
	if c.ChunkSize <= 0 {
		return 0
	}
	return int(float64(c.SampleRate) / float64(c.ChunkSize) * c.Duration)
}

// ChunkSource yields fixed-size chunks of signed 16-bit samples.
type ChunkSource interface {
	NextChunk() ([]int16, error)
	Close() error
}

// OpenFunc opens the capture source for a session.
type OpenFunc func(Config) (ChunkSource, error)

// dropCounter is implemented by sources that discard samples on overflow.
type dropCounter interface {
	Dropped() uint64
}

// Frame is what a Renderer receives after every iteration. Tails and the
// estimate are only filled in live mode.
type Frame struct {
	Iteration   int // 1-based
	Iterations  int
	Samples     int
	RawTail     []int16
	Filtered    []float64
	Estimate    dsp.FrequencyEstimate
	HasEstimate bool
	Analysis    time.Duration // time spent filtering and estimating
	Skip        error         // why there is no estimate, in live mode
	Level       float64
	LevelEvent  LevelEvent
	Flat        bool
	Dropped     uint64 // samples dropped during this iteration
}

// Renderer displays progress. It must not block the capture loop for long
// and cannot influence the pipeline.
type Renderer interface {
	Render(Frame)
}

// Result is everything a finished session produced.
type Result struct {
	Config    Config
	Started   time.Time
	Raw       []int16
	Filtered  []float64 // nil when the recording was too short to filter
	LiveRates []float64 // one per live iteration, NaN where skipped
	Rate      float64   // peak-count rate per minute; NaN when not computed
	Duration  float64   // seconds the rate was averaged over
	Completed bool      // every iteration ran
	Dropped   uint64
	TraceID   string // trace of the run; empty without a tracer provider
}

// Iterations returns the number of chunks captured.
func (r *Result) Iterations() int {
	if r.Config.ChunkSize <= 0 {
		return 0
	}
	return len(r.Raw) / r.Config.ChunkSize
}

// Sink persists a result.
type Sink interface {
	Write(*Result) error
}

type Option func(*Session)

func WithRenderer(r Renderer) Option { return func(s *Session) { s.renderer = r } }
func WithSink(sink Sink) Option      { return func(s *Session) { s.sink = sink } }

func WithMetrics(m *observe.Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithTail sets how many trailing samples each Frame carries.
func WithTail(n int) Option { return func(s *Session) { s.tail = n } }

// WithFlatLevel sets the chunk RMS below which input counts as flat.
func WithFlatLevel(level float64) Option { return func(s *Session) { s.flatLevel = level } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

type Session struct {
	cfg       Config
	open      OpenFunc
	coeffs    dsp.Coefficients
	estimator *dsp.SpectralEstimator

	renderer  Renderer
	sink      Sink
	metrics   *observe.Metrics
	tail      int
	flatLevel float64
	now       func() time.Time

	state State
}

// New validates cfg and designs the filter. Nothing is opened until Run.
func New(cfg Config, open OpenFunc, opts ...Option) (*Session, error) {
	if cfg.SampleRate <= 0 || cfg.ChunkSize <= 0 || cfg.Duration <= 0 {
		return nil, fmt.Errorf("session: rate %d, chunk %d and duration %v must be positive", cfg.SampleRate, cfg.ChunkSize, cfg.Duration)
	}
	if open == nil {
		return nil, errors.New("session: no chunk source")
	}
	coeffs, err := dsp.Design(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s := &Session{
		cfg:       cfg,
		open:      open,
		coeffs:    coeffs,
		tail:      5 * cfg.SampleRate,
		flatLevel: DefaultFlatLevel,
		now:       time.Now,
	}
	if cfg.Live {
		if s.estimator, err = dsp.NewSpectralEstimator(float64(cfg.SampleRate), cfg.Resolution); err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) State() State { return s.state }

// Run captures, finalises and hands the result to the sink. ctx is only
// checked between iterations; after cancellation the samples captured so far
// are still finalised. A failure on the very first read returns no result.
// The chunk source is closed on every path.
func (s *Session) Run(ctx context.Context) (res *Result, err error) {
	if s.state != Idle {
		return nil, ErrReused
	}
	started := s.now()

	ctx, span := observe.StartSpan(ctx, "session.run", trace.WithAttributes(
		attribute.Int("sample_rate", s.cfg.SampleRate),
		attribute.Int("chunk_size", s.cfg.ChunkSize),
		attribute.Float64("duration_s", s.cfg.Duration),
		attribute.Bool("live", s.cfg.Live),
	))
	defer func() { observe.EndSpan(span, err) }()

	src, err := s.open(s.cfg)
	if err != nil {
		s.state = Closed
		s.metrics.RecordSession(ctx, "open_failed")
		return nil, err
	}
	s.state = Capturing

	acc, liveRates, dropped, captureErr := s.capture(ctx, src)

	if captureErr != nil && acc.Len() == 0 {
		s.state = Closed
		s.metrics.RecordSession(ctx, "capture_failed")
		return nil, captureErr
	}

	s.state = Finalizing
	res = &Result{
		Config:    s.cfg,
		Started:   started,
		Raw:       acc.Snapshot(),
		LiveRates: liveRates,
		Rate:      math.NaN(),
		Dropped:   dropped,
		TraceID:   observe.TraceID(ctx),
	}
	res.Completed = res.Iterations() == s.cfg.Iterations()
	res.Duration = s.cfg.Duration
	if !res.Completed {
		res.Duration = float64(len(res.Raw)) / float64(s.cfg.SampleRate)
	}

	finalErr := s.finalize(ctx, res)

	var sinkErr error
	if s.sink != nil {
		if sinkErr = s.sink.Write(res); sinkErr != nil {
			sinkErr = fmt.Errorf("session: write results: %w", sinkErr)
		}
	}
	s.state = Closed

	outcome := "completed"
	switch {
	case captureErr != nil:
		outcome = "capture_failed"
	case !res.Completed:
		outcome = "stopped"
	}
	s.metrics.RecordSession(ctx, outcome)
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("samples", len(res.Raw)),
	)

	return res, errors.Join(captureErr, finalErr, sinkErr)
}

// capture runs the chunk loop and always closes src before returning.
func (s *Session) capture(ctx context.Context, src ChunkSource) (acc *Accumulator, liveRates []float64, dropped uint64, err error) {
	closed := false
	defer func() {
		if !closed {
			src.Close()
		}
	}()

	iterations := s.cfg.Iterations()
	acc = NewAccumulator(iterations * s.cfg.ChunkSize)
	level := newLevelMonitor(time.Duration(float64(s.cfg.ChunkSize)/float64(s.cfg.SampleRate)*float64(time.Second)), s.flatLevel)
	counter, _ := src.(dropCounter)

	var lv *liveView
	if s.cfg.Live {
		lv = s.newLiveView(iterations)
	}

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		chunk, readErr := src.NextChunk()
		if readErr != nil {
			err = fmt.Errorf("session: read chunk %d: %w", i+1, readErr)
			break
		}
		acc.Append(chunk)
		s.metrics.RecordIteration(ctx, len(chunk))

		frame := Frame{
			Iteration:  i + 1,
			Iterations: iterations,
			Samples:    acc.Len(),
			Level:      ChunkLevel(chunk),
		}
		frame.LevelEvent = level.Tick(frame.Level)
		frame.Flat = level.Flat()
		if counter != nil {
			if d := counter.Dropped(); d > dropped {
				frame.Dropped = d - dropped
				s.metrics.RecordDropped(ctx, frame.Dropped)
				dropped = d
			}
		}

		if lv != nil {
			lv.step(ctx, acc, chunk, &frame)
		}
		if s.renderer != nil {
			s.renderer.Render(frame)
		}
	}

	closed = true
	if cerr := src.Close(); cerr != nil && err == nil && acc.Len() > 0 {
		err = fmt.Errorf("session: close source: %w", cerr)
	}
	if lv != nil {
		liveRates = lv.rates
	}
	return acc, liveRates, dropped, err
}

func (s *Session) finalize(ctx context.Context, res *Result) (err error) {
	_, span := observe.StartSpan(ctx, "session.finalize")
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	filtered, err := dsp.Apply(s.coeffs, dsp.Float64s(res.Raw))
	if err != nil {
		return fmt.Errorf("session: final filter over %d samples: %w", len(res.Raw), err)
	}
	rate, err := dsp.PeakCountRate(filtered, res.Duration)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	res.Filtered = filtered
	res.Rate = rate
	s.metrics.RecordFinal(ctx, rate, time.Since(start))
	return nil
}

// liveView produces one spectral estimate per iteration, either by
// re-filtering the whole history or through the streaming filter.
type liveView struct {
	s        *Session
	stream   *dsp.StreamFilter
	streamed []float64
	rates    []float64
}

func (s *Session) newLiveView(iterations int) *liveView {
	lv := &liveView{
		s:     s,
		rates: make([]float64, 0, iterations),
	}
	if s.cfg.Streaming {
		lv.stream = dsp.NewStreamFilter(s.coeffs)
		lv.streamed = make([]float64, 0, iterations*s.cfg.ChunkSize)
	}
	return lv
}

func (lv *liveView) step(ctx context.Context, acc *Accumulator, chunk []int16, frame *Frame) {
	s := lv.s
	start := time.Now()

	var filtered []float64
	if lv.stream != nil {
		lv.streamed = append(lv.streamed, lv.stream.ProcessInt16(chunk)...)
		filtered = lv.streamed
	} else {
		var err error
		if filtered, err = dsp.ApplyInt16(s.coeffs, acc.Snapshot()); err != nil {
			lv.skip(ctx, frame, "filter", err, acc)
			return
		}
	}

	est, err := s.estimator.Estimate(filtered)
	if err != nil {
		lv.skip(ctx, frame, "window", err, acc)
		frame.Filtered = tailOf(filtered, s.tail)
		return
	}
	frame.Analysis = time.Since(start)
	s.metrics.RecordEstimate(ctx, est.RatePerMinute, frame.Analysis)
	lv.rates = append(lv.rates, est.RatePerMinute)

	frame.Estimate = est
	frame.HasEstimate = true
	frame.RawTail = tailOf(acc.Snapshot(), s.tail)
	frame.Filtered = tailOf(filtered, s.tail)
}

func (lv *liveView) skip(ctx context.Context, frame *Frame, reason string, err error, acc *Accumulator) {
	lv.s.metrics.RecordSkipped(ctx, reason)
	lv.rates = append(lv.rates, math.NaN())
	frame.Skip = err
	frame.RawTail = tailOf(acc.Snapshot(), lv.s.tail)
}

func tailOf[T any](x []T, n int) []T {
	if n <= 0 || len(x) <= n {
		return x
	}
	return x[len(x)-n:]
}
