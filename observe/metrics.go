// Package observe holds the OpenTelemetry instruments for dictation
// sessions and the optional Prometheus bridge that serves them on /metrics.
//
// Components take a *Metrics; tests build one with NewMetrics over a manual
// reader, everything else uses DefaultMetrics, which records into whatever
// global MeterProvider InitProvider installed (a no-op one otherwise).
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "hotscribe"

type Metrics struct {
	// TranscriptionDuration is backend call latency in seconds.
	// Attributes: profile, backend, mode (batch|stream|finalize).
	TranscriptionDuration metric.Float64Histogram

	// RecordingDuration is captured audio length in seconds, per profile.
	RecordingDuration metric.Float64Histogram

	// Transcriptions counts backend results. Attributes: profile, backend, status.
	Transcriptions metric.Int64Counter

	// BackendErrors counts failed backend calls. Attributes: profile, backend.
	BackendErrors metric.Int64Counter

	// AudioDiscarded counts recordings thrown away. Attributes: profile,
	// reason (too_short|no_speech|device).
	AudioDiscarded metric.Int64Counter

	SessionsActive metric.Int64UpDownCounter

	// AudioLevel is the RMS of the last captured frame, 0..1.
	AudioLevel metric.Float64Gauge
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30,
}

var recordingBuckets = []float64{
	0.25, 0.5, 1, 2, 5, 10, 30, 60, 120,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("hotscribe.transcription.duration",
		metric.WithDescription("Latency of transcription backend calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("hotscribe.recording.duration",
		metric.WithDescription("Length of captured recordings."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(recordingBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("hotscribe.transcriptions",
		metric.WithDescription("Transcription results by profile, backend and status."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("hotscribe.backend.errors",
		metric.WithDescription("Failed transcription backend calls."),
	); err != nil {
		return nil, err
	}
	if met.AudioDiscarded, err = m.Int64Counter("hotscribe.audio.discarded",
		metric.WithDescription("Recordings discarded before transcription."),
	); err != nil {
		return nil, err
	}
	if met.SessionsActive, err = m.Int64UpDownCounter("hotscribe.sessions.active",
		metric.WithDescription("Recording sessions currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.AudioLevel, err = m.Float64Gauge("hotscribe.audio.level",
		metric.WithDescription("RMS level of the most recent audio frame."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics panics only if the global provider rejects instrument
// creation, which the SDK and no-op providers never do.
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

func (m *Metrics) RecordTranscription(ctx context.Context, profile, backend, mode string, seconds float64, err error) {
	m.TranscriptionDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("profile", profile),
		attribute.String("backend", backend),
		attribute.String("mode", mode),
	))
	status := "ok"
	if err != nil {
		status = "error"
		m.BackendErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("profile", profile),
			attribute.String("backend", backend),
		))
	}
	m.Transcriptions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profile),
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordDiscard(ctx context.Context, profile, reason string) {
	m.AudioDiscarded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profile),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) RecordRecording(ctx context.Context, profile string, seconds float64) {
	m.RecordingDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("profile", profile)))
}

// SessionDelta moves the active sessions gauge by delta.
func (m *Metrics) SessionDelta(ctx context.Context, profile string, delta int64) {
	m.SessionsActive.Add(ctx, delta, metric.WithAttributes(attribute.String("profile", profile)))
}
