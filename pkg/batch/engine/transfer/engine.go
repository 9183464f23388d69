// Package transfer moves the detail rows of one claimed message id from the remote
// system into staging.
package transfer

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/staging"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/guard"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/reconcile"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

const moduleName = "transfer"

// Result summarizes one successful transfer.
type Result struct {
	MessageID string
	// HeaderCount is the record_count of the header, equal to the staged row count.
	HeaderCount int64
	Blocks      int
	Rows        int64
	// StatusUpdated is the number of header rows moved from W to I.
	StatusUpdated int64
}

// Engine runs transfers. It holds no per-transfer state and may be shared by
// concurrent callers.
type Engine struct {
	remote   remote.Connector
	staging  staging.Opener
	guard    *guard.Guard
	hook     reconcile.Hook
	cfg      *config.TransferConfig
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	now      func() time.Time
}

// NewEngine creates a new Engine.
func NewEngine(
	connector remote.Connector,
	opener staging.Opener,
	g *guard.Guard,
	hook reconcile.Hook,
	cfg *config.TransferConfig,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Engine {
	return &Engine{
		remote:   connector,
		staging:  opener,
		guard:    g,
		hook:     hook,
		cfg:      cfg,
		recorder: recorder,
		tracer:   tracer,
		now:      time.Now,
	}
}

// Transfer validates messageID, streams its detail rows into the import table and
// marks the header imported, all within one remote and one staging transaction.
// Any failure rolls both back and is returned unchanged.
func (e *Engine) Transfer(ctx context.Context, wu model.WorkUnit, messageID string) (Result, error) {
	ctx, end := e.tracer.StartSpan(ctx, "transfer", map[string]interface{}{
		"wfiid":      wu.ID,
		"message_id": messageID,
	})
	defer end()
	start := time.Now()
	log := logger.ForUnit(wu.ID, messageID)

	res, err := e.run(ctx, wu, messageID, log)
	if err != nil {
		e.tracer.RecordError(ctx, moduleName, err)
		e.recorder.RecordFailure(ctx, "transfer", err)
		e.recorder.RecordDuration(ctx, "transfer", time.Since(start), map[string]string{"status": "failure"})
		log.Errorf("Transfer failed: %v", err)
		return Result{MessageID: messageID}, err
	}
	e.recorder.RecordTransfer(ctx, messageID, res.Blocks, res.Rows)
	e.recorder.RecordDuration(ctx, "transfer", time.Since(start), map[string]string{"status": "success"})
	log.Infof("Transferred %d row(s) in %d block(s).", res.Rows, res.Blocks)
	return res, nil
}

func (e *Engine) run(ctx context.Context, wu model.WorkUnit, messageID string, log logger.UnitLogger) (Result, error) {
	res := Result{MessageID: messageID}

	rgw, err := e.remote.Open(ctx)
	if err != nil {
		return res, err
	}
	acc, err := e.staging.Open(ctx)
	if err != nil {
		if rbErr := rgw.Rollback(ctx); rbErr != nil {
			log.Warnf("Remote rollback after failed staging open: %v", rbErr)
		}
		return res, err
	}
	b := NewBoundary(wu, messageID, rgw, acc, e.hook, e.recorder)

	res.HeaderCount, err = e.guard.Check(ctx, guard.Session{Remote: rgw, Staging: acc}, wu, messageID)
	if err != nil {
		return res, b.Rollback(ctx, err)
	}

	buf := acc.NewBulkInsert(e.cfg.ImportTable, e.cfg.BlockSize)
	b.Buffer(buf)

	where := model.Where{model.ColMessageID: messageID}
	recv, err := rgw.NewReceiver(ctx, e.cfg.DetailTable, remote.ReceiveOptions{
		Select:  model.SelectSpec{Where: where, OrderBy: e.cfg.DetailOrderBy},
		Timeout: time.Duration(e.cfg.RemoteTimeout) * time.Millisecond,
		Block:   e.cfg.BlockSize,
	})
	if err != nil {
		return res, b.Rollback(ctx, err)
	}
	b.Track(recv)

	constants := model.RowConstants{
		MessageID:    messageID,
		SourceSystem: e.cfg.SourceSystem,
		TargetSystem: e.cfg.TargetSystem,
		MessageType:  e.cfg.MessageType,
		WorkUnitID:   wu.ID,
		DateCreated:  e.now(),
		ActualFlag:   e.cfg.ActualFlag,
	}
	for {
		rows, err := recv.GetData(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, b.Rollback(ctx, err)
		}
		merged := make([]model.Row, len(rows))
		for i, row := range rows {
			merged[i] = constants.Merge(row)
		}
		if err := buf.QueueData(ctx, merged...); err != nil {
			return res, b.Rollback(ctx, err)
		}
		res.Blocks++
		res.Rows += int64(len(rows))
		log.Debugf("Received block %d (%d rows).", res.Blocks, len(rows))
	}
	if err := b.ReleaseReceiver(); err != nil {
		return res, b.Rollback(ctx, exception.NewRemoteCallError(moduleName, "failed to release receiver", err))
	}
	if res.Rows != res.HeaderCount {
		log.Warnf("Streamed %d row(s) but header record_count is %d.", res.Rows, res.HeaderCount)
	}

	res.StatusUpdated, err = rgw.Update(ctx, e.cfg.HeaderTable,
		model.Row{
			model.ColIntStatus: model.StatusImported.String(),
			model.ColStatusEnd: e.now(),
		},
		where.With(model.ColIntStatus, model.StatusWaiting.String()))
	if err != nil {
		return res, b.Rollback(ctx, err)
	}
	log.Infof("Updated %s.int_status = %s; where int_status = %s; count: %d",
		e.cfg.HeaderTable, model.StatusImported, model.StatusWaiting, res.StatusUpdated)
	if res.StatusUpdated == 0 {
		log.Warnf("No header of message_id %s was in status %s for %s; it was not claimed by this work unit or is already imported.",
			messageID, model.StatusWaiting, wu)
	}

	if err := b.Commit(ctx); err != nil {
		return res, err
	}
	return res, nil
}
