package step

import (
	"context"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/lock"
)

// Claimer claims header rows for a work unit.
type Claimer interface {
	Claim(ctx context.Context, wu model.WorkUnit) (model.LockBatch, error)
}

var _ Claimer = (*lock.Coordinator)(nil)

// LockStep claims the new headers for the work unit of the payload.
type LockStep struct {
	claimer Claimer
}

// NewLockStep creates a new LockStep.
func NewLockStep(c Claimer) *LockStep {
	return &LockStep{claimer: c}
}

// Name implements Step.
func (s *LockStep) Name() string { return config.StepLock }

// Execute implements Step. The claimed ids are also put into the payload context under
// model.KeySourceMessageIDs.
func (s *LockStep) Execute(ctx context.Context, p *Payload) (*Payload, error) {
	batch, err := s.claimer.Claim(ctx, p.WorkUnit)
	if err != nil {
		return nil, err
	}
	p.Batch = batch
	p.Context.Put(model.KeySourceMessageIDs, batch.MessageIDs)
	return p, nil
}

// NewLockStepBuilder provides the Builder of the lock step.
func NewLockStepBuilder(c *lock.Coordinator) Builder {
	return func(cfg *config.Config, properties map[string]interface{}) (Step, error) {
		return NewLockStep(c), nil
	}
}

// RegisterLockStepBuilder registers the lock step under config.StepLock.
func RegisterLockStepBuilder(r *Registry, b Builder) {
	r.Register(config.StepLock, b)
}
