package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync loop metrics meter
	SyncMetricsMeterName = "github.com/stacklok/movies-etl/sync"
)

// SyncMetrics holds the OpenTelemetry instruments for the sync loop
type SyncMetrics struct {
	cycleDuration   metric.Float64Histogram
	documentsLoaded metric.Int64Counter
	impactedFilms   metric.Int64Histogram
	retries         metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"movies_etl_cycle_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	documentsLoaded, err := meter.Int64Counter(
		"movies_etl_documents_loaded_total",
		metric.WithDescription("Number of documents published to the search index"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	impactedFilms, err := meter.Int64Histogram(
		"movies_etl_impacted_films",
		metric.WithDescription("Number of films re-published per cycle"),
		metric.WithUnit("{film}"),
		metric.WithExplicitBucketBoundaries(0, 1, 10, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"movies_etl_retries_total",
		metric.WithDescription("Number of retried attempts of external calls"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration:   cycleDuration,
		documentsLoaded: documentsLoaded,
		impactedFilms:   impactedFilms,
		retries:         retries,
	}, nil
}

// RecordCycle records the duration and outcome of one cycle.
// stage is the failed stage, empty on success.
func (m *SyncMetrics) RecordCycle(ctx context.Context, duration time.Duration, stage string) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", stage == ""),
	}
	if stage != "" {
		attrs = append(attrs, attribute.String("stage", stage))
	}

	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDocumentsLoaded adds the number of documents accepted by the index
func (m *SyncMetrics) RecordDocumentsLoaded(ctx context.Context, index string, count int) {
	if m == nil || m.documentsLoaded == nil || count <= 0 {
		return
	}
	m.documentsLoaded.Add(ctx, int64(count), metric.WithAttributes(attribute.String("index", index)))
}

// RecordImpactedFilms records the size of the impact set of one cycle
func (m *SyncMetrics) RecordImpactedFilms(ctx context.Context, count int) {
	if m == nil || m.impactedFilms == nil {
		return
	}
	m.impactedFilms.Record(ctx, int64(count))
}

// RecordRetry counts one retried attempt of the named operation
func (m *SyncMetrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RetryObserver adapts RecordRetry to the retry observer signature
func (m *SyncMetrics) RetryObserver() func(name string, attempt uint, err error, wait time.Duration) {
	return func(name string, _ uint, _ error, _ time.Duration) {
		m.RecordRetry(context.Background(), name)
	}
}
