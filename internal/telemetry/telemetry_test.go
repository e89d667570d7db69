package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		config     *Config
		wantErr    string
		sdkTracer  bool
		sdkMeter   bool
		scrapeable bool
	}{
		{name: "no config"},
		{name: "disabled", config: &Config{
			Tracing: &TracingConfig{Enabled: true},
			Metrics: &MetricsConfig{Enabled: true},
		}},
		{name: "enabled without sections", config: &Config{Enabled: true}},
		{name: "tracing", config: &Config{
			Enabled:  true,
			Insecure: true,
			Tracing:  &TracingConfig{Enabled: true, Sampling: 1},
		}, sdkTracer: true},
		{name: "otlp metrics", config: &Config{
			Enabled:  true,
			Insecure: true,
			Metrics:  &MetricsConfig{Enabled: true},
		}, sdkMeter: true},
		{name: "prometheus metrics", config: &Config{
			Enabled: true,
			Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus},
		}, sdkMeter: true, scrapeable: true},
		{name: "invalid", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: 3},
		}, wantErr: "invalid telemetry configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, WithTelemetryConfig(tt.config))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

			if tt.sdkTracer {
				assert.IsType(t, &sdktrace.TracerProvider{}, tel.TracerProvider())
			} else {
				assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
			}
			if tt.sdkMeter {
				assert.IsType(t, &sdkmetric.MeterProvider{}, tel.MeterProvider())
			} else {
				assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
			}
			assert.Equal(t, tt.scrapeable, tel.MetricsHandler() != nil)
			assert.NotNil(t, tel.Tracer(TracerName))
		})
	}
}

func TestTelemetry_Shutdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	noop, err := New(ctx)
	require.NoError(t, err)
	assert.NoError(t, noop.Shutdown(ctx))

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus},
	}))
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_MetricsHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tel, err := New(ctx, WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	metrics, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordDocumentsLoaded(ctx, "movies", 7)

	rr := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "movies_etl_documents_loaded")
	assert.Contains(t, rr.Body.String(), `index="movies"`)
}
