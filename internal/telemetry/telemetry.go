// Package telemetry sets up OpenTelemetry metrics exported in Prometheus
// format and defines the instruments recorded by a pipeline run.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "github.com/nadzzz/narrator/pipeline"

// Setup installs a global meter provider backed by a Prometheus exporter on
// a private registry. The returned handler serves that registry. If the
// exporter cannot be created, metrics are still recorded in memory and the
// handler is nil.
func Setup(serviceName, version string, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		otel.SetMeterProvider(mp)
		return mp.Shutdown, nil, nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	logger.Info("telemetry initialized", slog.String("exporter", "prometheus"))
	return mp.Shutdown, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	runs          metric.Int64Counter
	stageDuration metric.Float64Histogram
	chunks        metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	runs, err := meter.Int64Counter("narrator.pipeline.runs",
		metric.WithDescription("Completed pipeline runs by outcome"))
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("narrator.pipeline.stage.duration",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	chunks, err := meter.Int64Counter("narrator.chunks",
		metric.WithDescription("Chunks sent to the rewrite and speech backends"))
	if err != nil {
		return nil, err
	}
	return &Metrics{runs: runs, stageDuration: stageDuration, chunks: chunks}, nil
}

// RecordRun counts one finished run. outcome is "success" or an error kind.
func (m *Metrics) RecordRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage observes how long a stage took.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordChunks counts chunks handed to a backend in stage.
func (m *Metrics) RecordChunks(ctx context.Context, stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunks.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", stage)))
}
