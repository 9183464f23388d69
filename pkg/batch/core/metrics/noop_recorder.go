package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordClaim(ctx context.Context, wu model.WorkUnit, claimed int)       {}
func (r *NoOpMetricRecorder) RecordRelease(ctx context.Context, wu model.WorkUnit, released int64) {}
func (r *NoOpMetricRecorder) RecordTransfer(ctx context.Context, messageID string, blocks int, rows int64) {
}
func (r *NoOpMetricRecorder) RecordFailure(ctx context.Context, operation string, err error) {}
func (r *NoOpMetricRecorder) RecordReconcileEvent(ctx context.Context, side string)          {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartWorkUnitSpan returns ctx unchanged.
func (t *NoOpTracer) StartWorkUnitSpan(ctx context.Context, wu model.WorkUnit) (context.Context, func()) {
	return ctx, func() {}
}

// StartSpan returns ctx unchanged.
func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
