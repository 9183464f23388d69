package step

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/step/retry"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/transfer"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Transferer transfers the details of one message id.
type Transferer interface {
	Transfer(ctx context.Context, wu model.WorkUnit, messageID string) (transfer.Result, error)
}

var _ Transferer = (*transfer.Engine)(nil)

// ImportProperties are the properties of the import step.
type ImportProperties struct {
	// Concurrency overrides transfer.concurrency for this step.
	Concurrency int `yaml:"concurrency"`
	// RetryAttempts is the number of attempts per message id; 1 disables retries.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	// RetryableErrors names further error types to retry besides retryable ones.
	RetryableErrors []string `yaml:"retryable_errors"`
}

// ImportStep transfers every message id the lock step published for the work unit.
type ImportStep struct {
	store       repository.WorkUnitStateStore
	transferer  Transferer
	concurrency int
	retry       retry.Policy
}

// NewImportStep creates a new ImportStep. A concurrency below 1 runs transfers one
// at a time. A nil policy attempts every transfer once.
func NewImportStep(store repository.WorkUnitStateStore, t Transferer, concurrency int, policy retry.Policy) *ImportStep {
	if concurrency < 1 {
		concurrency = 1
	}
	if policy == nil {
		policy = retry.NewPolicy(1, 0, nil)
	}
	return &ImportStep{store: store, transferer: t, concurrency: concurrency, retry: policy}
}

// Name implements Step.
func (s *ImportStep) Name() string { return config.StepImport }

// Execute implements Step. The message ids are read back from the state store, so the
// step also works when the lock step ran in an earlier process. Each id is transferred
// independently; a failure does not stop the others. Failures are returned together
// once all transfers have ended, and only successful results are added to the payload.
func (s *ImportStep) Execute(ctx context.Context, p *Payload) (*Payload, error) {
	batch, err := s.store.FindLockBatch(ctx, p.WorkUnit.ID)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("no lock batch published for %s", p.WorkUnit), err, false, false)
	}
	if batch.IsEmpty() {
		logger.Infof("Import: nothing to transfer for %s.", p.WorkUnit)
		return p, nil
	}

	results := make([]*transfer.Result, len(batch.MessageIDs))
	errs := make([]error, len(batch.MessageIDs))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, id := range batch.MessageIDs {
		i, id := i, id
		g.Go(func() error {
			var res transfer.Result
			err := retry.Do(ctx, s.retry, "transfer of message_id "+id, func(ctx context.Context) error {
				var err error
				res, err = s.transferer.Transfer(ctx, p.WorkUnit, id)
				return err
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	g.Wait()

	var merr *multierror.Error
	for i, id := range batch.MessageIDs {
		if errs[i] != nil {
			merr = multierror.Append(merr, fmt.Errorf("message_id %s: %w", id, errs[i]))
			continue
		}
		p.Results = append(p.Results, *results[i])
	}
	logger.Infof("Import: %d of %d message id(s) transferred for %s.", len(p.Results), len(batch.MessageIDs), p.WorkUnit)
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewImportStepBuilder provides the Builder of the import step.
func NewImportStepBuilder(store repository.WorkUnitStateStore, engine *transfer.Engine) Builder {
	return func(cfg *config.Config, properties map[string]interface{}) (Step, error) {
		props := ImportProperties{Concurrency: cfg.Lockxfer.Transfer.Concurrency, RetryAttempts: 1}
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		policy := retry.NewPolicy(props.RetryAttempts, props.RetryInterval, props.RetryableErrors)
		return NewImportStep(store, engine, props.Concurrency, policy), nil
	}
}

// RegisterImportStepBuilder registers the import step under config.StepImport.
func RegisterImportStepBuilder(r *Registry, b Builder) {
	r.Register(config.StepImport, b)
}
