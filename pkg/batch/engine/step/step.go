// Package step runs the workflow of one work unit as an ordered chain of named steps.
//
// Steps are looked up by name in a Registry and executed by a Runner in the order the
// workflow configuration declares. A Payload is handed from step to step by ownership:
// each step returns the payload it was given (or a replacement) and the previous
// reference must not be used again.
package step

import (
	"context"

	"github.com/google/uuid"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/transfer"
)

const moduleName = "step"

// Payload is the state threaded through the steps of one run.
type Payload struct {
	// RunID identifies this run in logs.
	RunID    string
	WorkUnit model.WorkUnit
	// Context holds values steps publish for later steps of the same run.
	Context model.ExecutionContext
	// Batch is the lock batch claimed by the lock step.
	Batch model.LockBatch
	// Results holds one entry per successfully transferred message id.
	Results []transfer.Result
}

// NewPayload creates the initial payload of a run for wu.
func NewPayload(wu model.WorkUnit) *Payload {
	return &Payload{
		RunID:    uuid.NewString(),
		WorkUnit: wu,
		Context:  model.NewExecutionContext(),
	}
}

// Step is one link of the workflow chain.
type Step interface {
	Name() string
	// Execute takes ownership of p and returns the payload for the next step.
	Execute(ctx context.Context, p *Payload) (*Payload, error)
}

// Builder creates a step from the global configuration and its declared properties.
type Builder func(cfg *config.Config, properties map[string]interface{}) (Step, error)
