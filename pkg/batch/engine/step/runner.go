package step

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Runner executes the configured workflow for one work unit.
type Runner struct {
	registry *Registry
	cfg      *config.Config
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewRunner creates a new Runner.
func NewRunner(registry *Registry, cfg *config.Config, recorder metrics.MetricRecorder, tracer metrics.Tracer) *Runner {
	return &Runner{registry: registry, cfg: cfg, recorder: recorder, tracer: tracer}
}

// Build creates the steps of the workflow in declared order.
func (r *Runner) Build() ([]Step, error) {
	wf := r.cfg.Lockxfer.Workflow
	if len(wf.Steps) == 0 {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("workflow '%s' declares no steps", wf.Name), nil, false, false)
	}
	steps := make([]Step, 0, len(wf.Steps))
	for _, sc := range wf.Steps {
		s, err := r.registry.Build(r.cfg, sc)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// Run executes every step for wu and returns the final payload. The first failing
// step ends the run; its error is returned and later steps do not run.
func (r *Runner) Run(ctx context.Context, wu model.WorkUnit) (*Payload, error) {
	steps, err := r.Build()
	if err != nil {
		return nil, err
	}

	ctx, end := r.tracer.StartWorkUnitSpan(ctx, wu)
	defer end()

	p := NewPayload(wu)
	logger.Infof("Workflow '%s' started for %s (run %s).", r.cfg.Lockxfer.Workflow.Name, wu, p.RunID)
	for _, s := range steps {
		start := time.Now()
		sctx, endStep := r.tracer.StartSpan(ctx, "step."+s.Name(), map[string]interface{}{"run_id": p.RunID})
		next, err := s.Execute(sctx, p)
		if err == nil && next == nil {
			err = exception.NewBatchError(moduleName, fmt.Sprintf("step '%s' returned no payload", s.Name()), nil, false, false)
		}
		if err != nil {
			r.tracer.RecordError(sctx, moduleName, err)
			endStep()
			r.recorder.RecordDuration(ctx, "step."+s.Name(), time.Since(start), map[string]string{"status": "failure"})
			logger.Errorf("Step '%s' failed for %s: %v", s.Name(), wu, err)
			return nil, fmt.Errorf("step '%s' of %s: %w", s.Name(), wu, err)
		}
		endStep()
		r.recorder.RecordDuration(ctx, "step."+s.Name(), time.Since(start), map[string]string{"status": "success"})
		logger.Infof("Step '%s' completed for %s in %s.", s.Name(), wu, time.Since(start))
		p = next
	}
	logger.Infof("Workflow '%s' completed for %s: %d message id(s) claimed, %d transferred.",
		r.cfg.Lockxfer.Workflow.Name, wu, p.Batch.Len(), len(p.Results))
	return p, nil
}
