package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics of the lock and
// transfer operations. It keeps the engine independent of the metrics backend
// (e.g., Prometheus).
type MetricRecorder interface {
	// RecordClaim records the number of message ids claimed by a work unit.
	RecordClaim(ctx context.Context, wu model.WorkUnit, claimed int)

	// RecordRelease records the number of header rows returned to status N.
	RecordRelease(ctx context.Context, wu model.WorkUnit, released int64)

	// RecordTransfer records one committed transfer of a message id.
	//
	// blocks: the number of blocks fetched from the remote system.
	// rows: the number of detail rows written to staging.
	RecordTransfer(ctx context.Context, messageID string, blocks int, rows int64)

	// RecordFailure records a failed operation ("claim", "release", "transfer", "commit").
	// The failure kind is derived from the error taxonomy.
	RecordFailure(ctx context.Context, operation string, err error)

	// RecordReconcileEvent records a one-sided commit reported to the reconciliation hook.
	RecordReconcileEvent(ctx context.Context, side string)

	// RecordDuration records the execution time of an operation.
	//
	// tags: additional labels, e.g. {"status": "success"}.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
