package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Lock metrics
	claimsTotal     prometheus.Counter
	claimedMessages prometheus.Counter
	releasedHeaders prometheus.Counter

	// Transfer metrics
	transfersTotal    prometheus.Counter
	transferredRows   prometheus.Counter
	transferredBlocks prometheus.Counter

	failuresTotal     *prometheus.CounterVec
	reconcileEvents   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		claimsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockxfer_claims_total",
			Help: "Total number of committed claims.",
		}),
		claimedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockxfer_claimed_messages_total",
			Help: "Total number of message ids claimed.",
		}),
		releasedHeaders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockxfer_released_headers_total",
			Help: "Total number of header rows returned to status N.",
		}),
		transfersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockxfer_transfers_total",
			Help: "Total number of committed message id transfers.",
		}),
		transferredRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockxfer_transferred_rows_total",
			Help: "Total detail rows written to staging.",
		}),
		transferredBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockxfer_transferred_blocks_total",
			Help: "Total blocks fetched from the remote system.",
		}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockxfer_failures_total",
			Help: "Total failed operations by operation and failure kind.",
		}, []string{"operation", "kind"}),
		reconcileEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockxfer_reconcile_events_total",
			Help: "Total one-sided commits reported for reconciliation.",
		}, []string{"side"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lockxfer_operation_duration_seconds",
			Help:    "Duration of lock, transfer and step operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "status"}),
	}

	registry.MustRegister(
		r.claimsTotal,
		r.claimedMessages,
		r.releasedHeaders,
		r.transfersTotal,
		r.transferredRows,
		r.transferredBlocks,
		r.failuresTotal,
		r.reconcileEvents,
		r.operationDuration,
	)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordClaim implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordClaim(ctx context.Context, wu model.WorkUnit, claimed int) {
	r.claimsTotal.Inc()
	r.claimedMessages.Add(float64(claimed))
	logger.Debugf("Metrics: %s claimed %d message id(s).", wu, claimed)
}

// RecordRelease implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordRelease(ctx context.Context, wu model.WorkUnit, released int64) {
	r.releasedHeaders.Add(float64(released))
}

// RecordTransfer implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordTransfer(ctx context.Context, messageID string, blocks int, rows int64) {
	r.transfersTotal.Inc()
	r.transferredBlocks.Add(float64(blocks))
	r.transferredRows.Add(float64(rows))
}

// RecordFailure implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordFailure(ctx context.Context, operation string, err error) {
	r.failuresTotal.WithLabelValues(operation, exception.Kind(err)).Inc()
}

// RecordReconcileEvent implements metrics.MetricRecorder.
func (r *PrometheusRecorder) RecordReconcileEvent(ctx context.Context, side string) {
	r.reconcileEvents.WithLabelValues(side).Inc()
}

// RecordDuration implements metrics.MetricRecorder. Only the "status" tag becomes a label.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	status := tags["status"]
	if status == "" {
		status = "unknown"
	}
	r.operationDuration.WithLabelValues(name, status).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
