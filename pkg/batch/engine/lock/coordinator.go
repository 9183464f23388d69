// Package lock claims header rows of the remote system for one work unit.
//
// A claim runs in one remote transaction:
//
//	N --update--> x (stamped with the work unit id) --re-read--> publish --update--> W
//
// The re-read and the confirming update are both filtered by the work unit id, so
// rows personally locked by another instance are never picked up.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
	"github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

const moduleName = "lock"

// Coordinator claims and releases header rows.
type Coordinator struct {
	connector remote.Connector
	store     repository.WorkUnitStateStore
	cfg       *config.TransferConfig
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(
	connector remote.Connector,
	store repository.WorkUnitStateStore,
	cfg *config.TransferConfig,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Coordinator {
	return &Coordinator{
		connector: connector,
		store:     store,
		cfg:       cfg,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// scope is the (source_system, message_type) pair every statement is filtered by.
func (c *Coordinator) scope() model.Where {
	return model.Where{
		model.ColSourceSystem: c.cfg.SourceSystem,
		model.ColMessageType:  c.cfg.MessageType,
	}
}

// recordCountCond excludes headers carrying the configured sentinel; without one,
// headers with a NULL record_count are excluded.
func (c *Coordinator) recordCountCond() model.Cond {
	if c.cfg.RecordCountSentinel == "" {
		return model.NotNull()
	}
	return model.Ne(c.cfg.RecordCountSentinel)
}

// lockedBy selects the rows personally locked by wu.
func (c *Coordinator) lockedBy(wu model.WorkUnit) model.Where {
	return c.scope().
		With(model.ColIntStatus, model.StatusLocked.String()).
		With(model.ColWorkUnitID, wu.ID)
}

// Claim locks all new headers of the configured source system and message type for
// wu, publishes their message ids to the state store and confirms the lock. Any
// failure rolls the remote transaction back and withdraws a batch that was already
// published. An empty batch is a success.
func (c *Coordinator) Claim(ctx context.Context, wu model.WorkUnit) (batch model.LockBatch, err error) {
	ctx, end := c.tracer.StartSpan(ctx, "lock.claim", map[string]interface{}{"wfiid": wu.ID})
	defer end()
	start := time.Now()

	gw, err := c.connector.Open(ctx)
	if err != nil {
		c.fail(ctx, "claim", start, err)
		return model.LockBatch{}, err
	}
	published := false
	defer func() {
		if err != nil {
			if rbErr := gw.Rollback(ctx); rbErr != nil {
				logger.Errorf("Lock: rollback after failed claim of %s failed: %v", wu, rbErr)
			}
			if published {
				// The headers are back in N; the ids must not reach an import step.
				if delErr := c.store.DeleteLockBatch(ctx, wu.ID); delErr != nil {
					logger.Errorf("Lock: withdrawing the batch of %s after a failed claim failed: %v", wu, delErr)
				}
			}
			c.fail(ctx, "claim", start, err)
		}
	}()

	table := c.cfg.HeaderTable
	claimed, err := gw.Update(ctx, table,
		model.Row{
			model.ColIntStatus:  model.StatusLocked.String(),
			model.ColWorkUnitID: wu.ID,
		},
		c.scope().
			With(model.ColIntStatus, model.StatusNew.String()).
			With(model.ColRecordCount, c.recordCountCond()))
	if err != nil {
		return model.LockBatch{}, err
	}
	logger.Infof("Updated %s.int_status = %s; where int_status = %s; count: %d", table, model.StatusLocked, model.StatusNew, claimed)

	rows, err := gw.Select(ctx, table, model.SelectSpec{
		Columns: []string{model.ColMessageID},
		Where:   c.lockedBy(wu),
		OrderBy: model.ColMessageID,
	})
	if err != nil {
		return model.LockBatch{}, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		id, ok := model.ToString(row[model.ColMessageID])
		if !ok {
			return model.LockBatch{}, exception.NewBatchError(moduleName,
				fmt.Sprintf("unsupported message_id value %v (%T)", row[model.ColMessageID], row[model.ColMessageID]), nil, false, false)
		}
		ids = append(ids, id)
	}
	batch = model.LockBatch{WorkUnit: wu, MessageIDs: ids}
	logger.Infof("Lock: %s got message_ids: %v", wu, ids)

	if err = c.store.SaveLockBatch(ctx, batch); err != nil {
		return model.LockBatch{}, err
	}
	published = true

	confirmed, err := gw.Update(ctx, table, model.Row{model.ColIntStatus: model.StatusWaiting.String()}, c.lockedBy(wu))
	if err != nil {
		return model.LockBatch{}, err
	}
	logger.Infof("Updated %s.int_status = %s; where int_status = %s; count: %d", table, model.StatusWaiting, model.StatusLocked, confirmed)
	if confirmed != int64(len(ids)) {
		err = exception.NewOptimisticLockingFailureException(moduleName,
			fmt.Sprintf("confirmed %d header row(s) of %s but %d were locked", confirmed, wu, len(ids)), nil)
		return model.LockBatch{}, err
	}

	if err = gw.Commit(ctx); err != nil {
		return model.LockBatch{}, err
	}

	c.recorder.RecordClaim(ctx, wu, len(ids))
	c.recorder.RecordDuration(ctx, "claim", time.Since(start), map[string]string{"status": "success"})
	if batch.IsEmpty() {
		logger.Infof("Lock: nothing to claim for %s.", wu)
	}
	return batch, nil
}

// Release returns headers locked by wu (in status x or W) to status N and clears
// their work unit id. With no messageIDs every header of wu is released. It returns
// the number of released rows.
func (c *Coordinator) Release(ctx context.Context, wu model.WorkUnit, messageIDs ...string) (released int64, err error) {
	ctx, end := c.tracer.StartSpan(ctx, "lock.release", map[string]interface{}{"wfiid": wu.ID, "message_ids": len(messageIDs)})
	defer end()
	start := time.Now()

	gw, err := c.connector.Open(ctx)
	if err != nil {
		c.fail(ctx, "release", start, err)
		return 0, err
	}
	defer func() {
		if err != nil {
			if rbErr := gw.Rollback(ctx); rbErr != nil {
				logger.Errorf("Lock: rollback after failed release of %s failed: %v", wu, rbErr)
			}
			c.fail(ctx, "release", start, err)
		}
	}()

	where := c.scope().
		With(model.ColWorkUnitID, wu.ID).
		With(model.ColIntStatus, model.In([]string{model.StatusLocked.String(), model.StatusWaiting.String()}))
	if len(messageIDs) > 0 {
		where = where.With(model.ColMessageID, model.In(messageIDs))
	}

	released, err = gw.Update(ctx, c.cfg.HeaderTable,
		model.Row{
			model.ColIntStatus:  model.StatusNew.String(),
			model.ColWorkUnitID: nil,
		}, where)
	if err != nil {
		return 0, err
	}
	if err = gw.Commit(ctx); err != nil {
		return 0, err
	}

	logger.Infof("Lock: released %d header row(s) of %s.", released, wu)
	c.recorder.RecordRelease(ctx, wu, released)
	c.recorder.RecordDuration(ctx, "release", time.Since(start), map[string]string{"status": "success"})
	return released, nil
}

func (c *Coordinator) fail(ctx context.Context, op string, start time.Time, err error) {
	c.tracer.RecordError(ctx, moduleName, err)
	c.recorder.RecordFailure(ctx, op, err)
	c.recorder.RecordDuration(ctx, op, time.Since(start), map[string]string{"status": "failure"})
}
