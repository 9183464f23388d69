// Package metrics exports lockxfer metrics to Prometheus and traces to OpenTelemetry.
package metrics

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	metrics "github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
)

func newTracerProvider(lc fx.Lifecycle, cfg *config.ObservabilityConfig) (*sdktrace.TracerProvider, error) {
	tp, err := NewTracerProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	return tp, nil
}

func newTracer(tp *sdktrace.TracerProvider) metrics.Tracer {
	return NewOpenTelemetryTracer(tp)
}

func registerMetricsServer(lc fx.Lifecycle, cfg *config.ObservabilityConfig, recorder *PrometheusRecorder) {
	if cfg.MetricsAddress == "" {
		return
	}
	server := NewMetricsServer(cfg.MetricsAddress, recorder)
	lc.Append(fx.Hook{OnStart: server.Start, OnStop: server.Stop})
}

// Module is an Fx module that provides PrometheusRecorder and OpenTelemetryTracer.
// It replaces the no-op module of core/metrics.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	// Provide PrometheusRecorder as a core MetricRecorder interface.
	fx.Provide(func(r *PrometheusRecorder) metrics.MetricRecorder { return r }),
	fx.Provide(newTracerProvider),
	fx.Provide(newTracer),
	fx.Invoke(registerMetricsServer),
)
