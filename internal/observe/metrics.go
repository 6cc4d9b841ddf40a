// Package observe provides application-wide observability primitives for
// Earshot: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Earshot metrics.
const meterName = "github.com/earshot-dev/earshot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// VADDuration tracks per-frame voice activity inference latency.
	VADDuration metric.Float64Histogram

	// ClassifyDuration tracks audio classification latency per segment.
	ClassifyDuration metric.Float64Histogram

	// SegmentDuration tracks the audio length of completed speech segments.
	SegmentDuration metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts audio frames fed through the pipeline.
	FramesProcessed metric.Int64Counter

	// SegmentsStarted counts voice activity segment starts.
	SegmentsStarted metric.Int64Counter

	// SegmentsCompleted counts segment ends. Use with attribute:
	//   attribute.String("outcome", "speech"|"rejected"|"misfire")
	SegmentsCompleted metric.Int64Counter

	// Publishes counts transport publishes. Use with attributes:
	//   attribute.String("kind", "stream"|"marker"|"utterance"), attribute.String("status", ...)
	Publishes metric.Int64Counter

	// SpeakingVerdicts counts probability-filter verdicts. Use with attribute:
	//   attribute.Bool("speaking", ...)
	SpeakingVerdicts metric.Int64Counter

	// --- Error counters ---

	// PipelineErrors counts pipeline errors by stage. Use with attribute:
	//   attribute.String("stage", "vad"|"classify"|"publish"|"capture")
	PipelineErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDetectors tracks the number of running detectors.
	ActiveDetectors metric.Int64UpDownCounter

	// ActiveStreams tracks the number of speech streams currently open.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for audio-pipeline latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// segmentBuckets defines bucket boundaries (in seconds) for speech segment
// lengths, spanning the minimum utterance up to the runaway cutoff.
var segmentBuckets = []float64{
	0.5, 1, 2, 3, 5, 8, 12, 16, 20,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.VADDuration, err = m.Float64Histogram("earshot.vad.duration",
		metric.WithDescription("Latency of per-frame voice activity inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("earshot.classify.duration",
		metric.WithDescription("Latency of audio classification per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("earshot.segment.duration",
		metric.WithDescription("Audio length of completed speech segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("earshot.frames.processed",
		metric.WithDescription("Total audio frames fed through the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsStarted, err = m.Int64Counter("earshot.segments.started",
		metric.WithDescription("Total voice activity segment starts."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsCompleted, err = m.Int64Counter("earshot.segments.completed",
		metric.WithDescription("Total segment ends by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Publishes, err = m.Int64Counter("earshot.transport.publishes",
		metric.WithDescription("Total transport publishes by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.SpeakingVerdicts, err = m.Int64Counter("earshot.speaking.verdicts",
		metric.WithDescription("Total probability-filter verdicts by speaking outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.PipelineErrors, err = m.Int64Counter("earshot.pipeline.errors",
		metric.WithDescription("Total pipeline errors by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDetectors, err = m.Int64UpDownCounter("earshot.active_detectors",
		metric.WithDescription("Number of running detectors."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("earshot.active_streams",
		metric.WithDescription("Number of speech streams currently open."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("earshot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSegmentCompleted records a segment end with its outcome and audio
// length.
func (m *Metrics) RecordSegmentCompleted(ctx context.Context, outcome string, seconds float64) {
	m.SegmentsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.SegmentDuration.Record(ctx, seconds)
}

// RecordPublish records a transport publish counter increment with the
// standard attribute set.
func (m *Metrics) RecordPublish(ctx context.Context, kind, status string) {
	m.Publishes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordSpeakingVerdict records a probability-filter verdict.
func (m *Metrics) RecordSpeakingVerdict(ctx context.Context, speaking bool) {
	m.SpeakingVerdicts.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("speaking", speaking)),
	)
}

// RecordPipelineError records a pipeline error counter increment for the
// given stage.
func (m *Metrics) RecordPipelineError(ctx context.Context, stage string) {
	m.PipelineErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
