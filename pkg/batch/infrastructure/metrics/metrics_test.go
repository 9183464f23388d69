package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordClaim(ctx, model.WorkUnit{ID: 1}, 3)
	r.RecordClaim(ctx, model.WorkUnit{ID: 2}, 0)
	r.RecordTransfer(ctx, "42", 3, 5)
	r.RecordRelease(ctx, model.WorkUnit{ID: 1}, 2)
	r.RecordReconcileEvent(ctx, "remote")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.claimsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.claimedMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transfersTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.transferredBlocks))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.transferredRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.releasedHeaders))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reconcileEvents.WithLabelValues("remote")))
}

func TestPrometheusRecorder_FailureKinds(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordFailure(ctx, "transfer", exception.NewBusinessCountMismatchError("guard", "42", 5, 4))
	r.RecordFailure(ctx, "transfer", exception.NewRemoteTimeoutError("remote", "timeout", nil))
	r.RecordFailure(ctx, "claim", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("transfer", exception.BusinessCountMismatchError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("transfer", exception.RemoteTimeoutError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("claim", "Unknown")))
}

func TestPrometheusRecorder_Duration(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordDuration(context.Background(), "transfer", 150*time.Millisecond, map[string]string{"status": "success"})

	assert.Equal(t, 1, testutil.CollectAndCount(r.operationDuration))
}

func TestOpenTelemetryTracer_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracer(tp)

	ctx, endRoot := tracer.StartWorkUnitSpan(context.Background(), model.WorkUnit{ID: 9, Name: "wf"})
	spanCtx, endChild := tracer.StartSpan(ctx, "transfer", map[string]interface{}{"message_id": "42", "rows": 5})
	tracer.RecordEvent(spanCtx, "block", map[string]interface{}{"size": int64(2)})
	tracer.RecordError(spanCtx, "transfer", errors.New("boom"))
	endChild()
	endRoot()

	ended := sr.Ended()
	require.Len(t, ended, 2)
	child, root := ended[0], ended[1]
	assert.Equal(t, "transfer", child.Name())
	assert.Equal(t, "work_unit", root.Name())
	assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, otelcodes.Error, child.Status().Code)
	require.Len(t, child.Events(), 2)
	assert.Equal(t, "block", child.Events()[0].Name)
}

func TestNewTracerProvider_WithoutEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), &config.ObservabilityConfig{ServiceName: "lockxfer"})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}
