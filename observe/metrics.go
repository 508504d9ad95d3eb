// Package observe provides the OpenTelemetry metric instruments of the
// recording pipeline and a Prometheus bridge to scrape them.
//
// Tests should build a [Metrics] with [NewMetrics] and their own
// [metric.MeterProvider]; [DefaultMetrics] uses the global provider that
// [InitProvider] installs.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "respire"

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Iterations counts chunk reads completed by a session.
	Iterations metric.Int64Counter

	// Samples counts captured samples.
	Samples metric.Int64Counter

	// DroppedSamples counts samples lost to input overflow.
	DroppedSamples metric.Int64Counter

	// SkippedEstimates counts live iterations without an estimate. Use with
	// attribute.String("reason", ...).
	SkippedEstimates metric.Int64Counter

	// AnalysisDuration tracks the filter + estimate time of one live iteration.
	AnalysisDuration metric.Float64Histogram

	// FinalizeDuration tracks the final zero-phase filter and peak count.
	FinalizeDuration metric.Float64Histogram

	// Rate records estimated rates per minute. Use with
	// attribute.String("source", "live"|"final").
	Rate metric.Float64Histogram

	// Sessions counts finished sessions by attribute.String("outcome", ...).
	Sessions metric.Int64Counter
}

var analysisBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

var rateBuckets = []float64{
	0, 4, 8, 12, 16, 20, 25, 30, 40, 60, 90, 120, 180,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Iterations, err = m.Int64Counter("respire.session.iterations",
		metric.WithDescription("Chunk reads completed by recording sessions."),
	); err != nil {
		return nil, err
	}
	if met.Samples, err = m.Int64Counter("respire.capture.samples",
		metric.WithDescription("Audio samples captured."),
	); err != nil {
		return nil, err
	}
	if met.DroppedSamples, err = m.Int64Counter("respire.capture.dropped_samples",
		metric.WithDescription("Audio samples discarded because the reader fell behind."),
	); err != nil {
		return nil, err
	}
	if met.SkippedEstimates, err = m.Int64Counter("respire.live.skipped_estimates",
		metric.WithDescription("Live iterations that produced no estimate, by reason."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("respire.live.analysis.duration",
		metric.WithDescription("Time to filter the history and estimate the rate in one live iteration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FinalizeDuration, err = m.Float64Histogram("respire.finalize.duration",
		metric.WithDescription("Time to filter the full recording and count peaks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Rate, err = m.Float64Histogram("respire.rate",
		metric.WithDescription("Estimated rate by source."),
		metric.WithUnit("{event}/min"),
		metric.WithExplicitBucketBoundaries(rateBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("respire.sessions",
		metric.WithDescription("Finished sessions by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on
// [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordIteration counts one chunk read of n samples.
func (m *Metrics) RecordIteration(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.Iterations.Add(ctx, 1)
	m.Samples.Add(ctx, int64(n))
}

// RecordDropped adds n dropped samples.
func (m *Metrics) RecordDropped(ctx context.Context, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedSamples.Add(ctx, int64(n))
}

// RecordEstimate records a live estimate and the time it took.
func (m *Metrics) RecordEstimate(ctx context.Context, rate float64, took time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Record(ctx, took.Seconds())
	m.Rate.Record(ctx, rate, metric.WithAttributes(attribute.String("source", "live")))
}

// RecordSkipped counts a live iteration without an estimate.
func (m *Metrics) RecordSkipped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.SkippedEstimates.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordFinal records the final rate and finalisation time.
func (m *Metrics) RecordFinal(ctx context.Context, rate float64, took time.Duration) {
	if m == nil {
		return
	}
	m.FinalizeDuration.Record(ctx, took.Seconds())
	m.Rate.Record(ctx, rate, metric.WithAttributes(attribute.String("source", "final")))
}

// RecordSession counts a finished session.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
