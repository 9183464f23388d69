package metrics

import (
	"context"

	model "github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// The lock, transfer and commit operations each open a span under the span of
// the work unit they belong to.
type Tracer interface {
	// StartWorkUnitSpan starts the root span of one work unit.
	//
	// Returns: a context with the new span set, and a function to end the span.
	StartWorkUnitSpan(ctx context.Context, wu model.WorkUnit) (context.Context, func())

	// StartSpan starts a child span named after the operation.
	StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func())

	// RecordError records an error in the current span.
	//
	// module: the component where the error occurred (e.g., "lock", "transfer").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
