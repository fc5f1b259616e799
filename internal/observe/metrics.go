// Package observe provides application-wide observability primitives for
// the transcription pipeline: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/MrWong99/glyphoxa"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// VADFrameDuration tracks the time spent classifying a single VAD frame.
	VADFrameDuration metric.Float64Histogram

	// SegmentDuration tracks the active audio duration of finalized segments.
	SegmentDuration metric.Float64Histogram

	// TranscriptionLatency tracks the time between a segment being sent and
	// its matching transcription arriving.
	TranscriptionLatency metric.Float64Histogram

	// --- Counters ---

	// VADFramesClassified counts frames classified by stage. Use with
	// attribute.String("stage", "energy"|"webrtc") and
	// attribute.Bool("speech", ...).
	VADFramesClassified metric.Int64Counter

	// SegmentsEmitted counts segments finalized by the segmenter. Use with
	// attribute.String("participant_id", ...).
	SegmentsEmitted metric.Int64Counter

	// TranscriptionsReceived counts transcription messages received from the
	// inference worker.
	TranscriptionsReceived metric.Int64Counter

	// WorkerErrors counts error-tagged messages received from the inference
	// worker. Use with attribute.String("code", ...).
	WorkerErrors metric.Int64Counter

	// TransportReconnects counts reconnect attempts by the inference
	// transport.
	TransportReconnects metric.Int64Counter

	// LogWrites counts successful session log appends.
	LogWrites metric.Int64Counter

	// LogWriteErrors counts failed session log append attempts.
	LogWriteErrors metric.Int64Counter

	// DisplayNameResolutions counts display-name directory lookups. Use with
	// attribute.String("outcome", "hit"|"fuzzy"|"miss").
	DisplayNameResolutions metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live transcription sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveParticipants tracks the number of connected participants across
	// all sessions.
	ActiveParticipants metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time (health/metrics
	// endpoints). Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// segmentBuckets defines histogram bucket boundaries (in seconds) sized for
// whole utterances rather than frame/round-trip latencies.
var segmentBuckets = []float64{
	0.2, 0.5, 1, 2, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.VADFrameDuration, err = m.Float64Histogram("transcribe.vad.frame.duration",
		metric.WithDescription("Latency of classifying a single VAD frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("transcribe.segment.duration",
		metric.WithDescription("Active audio duration of finalized segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionLatency, err = m.Float64Histogram("transcribe.transcription.latency",
		metric.WithDescription("Time between sending a segment and receiving its transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.VADFramesClassified, err = m.Int64Counter("transcribe.vad.frames_classified",
		metric.WithDescription("Total VAD frames classified by stage and outcome."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("transcribe.segment.emitted",
		metric.WithDescription("Total segments finalized by the per-participant segmenter."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionsReceived, err = m.Int64Counter("transcribe.transcription.received",
		metric.WithDescription("Total transcription messages received from the inference worker."),
	); err != nil {
		return nil, err
	}
	if met.WorkerErrors, err = m.Int64Counter("transcribe.worker.errors",
		metric.WithDescription("Total error-tagged messages received from the inference worker."),
	); err != nil {
		return nil, err
	}
	if met.TransportReconnects, err = m.Int64Counter("transcribe.transport.reconnects",
		metric.WithDescription("Total reconnect attempts by the inference transport."),
	); err != nil {
		return nil, err
	}
	if met.LogWrites, err = m.Int64Counter("transcribe.log.writes",
		metric.WithDescription("Total successful session log appends."),
	); err != nil {
		return nil, err
	}
	if met.LogWriteErrors, err = m.Int64Counter("transcribe.log.write_errors",
		metric.WithDescription("Total failed session log append attempts."),
	); err != nil {
		return nil, err
	}
	if met.DisplayNameResolutions, err = m.Int64Counter("transcribe.displayname.resolutions",
		metric.WithDescription("Total display-name directory lookups by outcome."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("transcribe.active_sessions",
		metric.WithDescription("Number of live transcription sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveParticipants, err = m.Int64UpDownCounter("transcribe.active_participants",
		metric.WithDescription("Number of connected participants across all sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("transcribe.http.request.duration",
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

// RecordSegmentEmitted records a finalized segment's active duration for a
// given participant.
func (m *Metrics) RecordSegmentEmitted(ctx context.Context, participantID string, activeSeconds float64) {
	m.SegmentsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("participant_id", participantID)))
	m.SegmentDuration.Record(ctx, activeSeconds)
}

// RecordVADFrame records the outcome of classifying a single VAD frame at
// the given stage ("energy" or "webrtc").
func (m *Metrics) RecordVADFrame(ctx context.Context, stage string, speech bool, duration float64) {
	m.VADFramesClassified.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.Bool("speech", speech),
		),
	)
	m.VADFrameDuration.Record(ctx, duration)
}

// RecordWorkerError records an error-tagged message received from the
// inference worker.
func (m *Metrics) RecordWorkerError(ctx context.Context, code string) {
	m.WorkerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordTransportReconnect records a single reconnect attempt by the
// inference transport.
func (m *Metrics) RecordTransportReconnect(ctx context.Context) {
	m.TransportReconnects.Add(ctx, 1)
}

// RecordLogWrite records the outcome of a single session log append.
func (m *Metrics) RecordLogWrite(ctx context.Context, ok bool) {
	if ok {
		m.LogWrites.Add(ctx, 1)
		return
	}
	m.LogWriteErrors.Add(ctx, 1)
}

// RecordDisplayNameResolution records the outcome of a single display-name
// resolution attempt ("hit", "fuzzy", or "miss").
func (m *Metrics) RecordDisplayNameResolution(ctx context.Context, outcome string) {
	m.DisplayNameResolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
