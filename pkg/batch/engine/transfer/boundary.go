package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/staging"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/reconcile"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// ErrBoundaryEnded is returned by Commit after the boundary was committed or rolled back.
var ErrBoundaryEnded = errors.New("transaction boundary already ended")

// Boundary ends the remote and staging transactions of one transfer together.
// Commit and Rollback are terminal; whichever runs first wins.
type Boundary struct {
	wu        model.WorkUnit
	messageID string
	remote    remote.Gateway
	staging   staging.Accessor
	hook      reconcile.Hook
	recorder  metrics.MetricRecorder

	mu       sync.Mutex
	receiver remote.Receiver
	released bool
	buffer   staging.BulkInsert
	ended    bool
}

// NewBoundary creates a boundary over an open remote gateway and staging accessor.
func NewBoundary(
	wu model.WorkUnit,
	messageID string,
	rgw remote.Gateway,
	acc staging.Accessor,
	hook reconcile.Hook,
	recorder metrics.MetricRecorder,
) *Boundary {
	return &Boundary{
		wu:        wu,
		messageID: messageID,
		remote:    rgw,
		staging:   acc,
		hook:      hook,
		recorder:  recorder,
	}
}

// Track registers the receiver to disconnect when the boundary ends.
func (b *Boundary) Track(r remote.Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiver = r
	b.released = false
}

// Buffer registers the bulk buffer to flush on Commit or discard on Rollback.
func (b *Boundary) Buffer(buf staging.BulkInsert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer = buf
}

// ReleaseReceiver disconnects the tracked receiver. Only the first call reaches the
// receiver.
func (b *Boundary) ReleaseReceiver() error {
	b.mu.Lock()
	r := b.receiver
	if r == nil || b.released {
		b.mu.Unlock()
		return nil
	}
	b.released = true
	b.mu.Unlock()
	return r.Disconnect()
}

func (b *Boundary) end() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return false
	}
	b.ended = true
	return true
}

// Commit flushes the buffer, commits staging and then the remote system. A failure
// before the staging commit rolls both sides back. A failed remote commit after a
// successful staging commit cannot be undone; it is reported to the reconciliation
// hook and returned as a non-retryable error.
func (b *Boundary) Commit(ctx context.Context) error {
	if !b.end() {
		return ErrBoundaryEnded
	}
	if err := b.ReleaseReceiver(); err != nil {
		return b.Rollback(ctx, err)
	}
	b.mu.Lock()
	buf := b.buffer
	b.mu.Unlock()
	if buf != nil {
		if err := buf.Flush(ctx); err != nil {
			return b.Rollback(ctx, err)
		}
	}
	if err := b.staging.Commit(ctx); err != nil {
		return b.Rollback(ctx, err)
	}
	if err := b.remote.Commit(ctx); err != nil {
		ev := reconcile.NewEvent(b.wu, b.messageID, reconcile.SideStaging, reconcile.SideRemote, err)
		b.recorder.RecordReconcileEvent(ctx, string(reconcile.SideRemote))
		if hookErr := b.hook.Report(ctx, ev); hookErr != nil {
			logger.Errorf("Transfer: reporting reconciliation event %s failed: %v", ev.ID, hookErr)
		}
		if rbErr := b.remote.Rollback(ctx); rbErr != nil {
			logger.Debugf("Transfer: remote rollback after failed commit: %v", rbErr)
		}
		// Staging already holds the rows, so a retry would only hit the duplicate guard.
		return exception.NewBatchError(moduleName,
			fmt.Sprintf("remote commit of message_id %s failed after the staging commit (event %s)", b.messageID, ev.ID), err, false, false)
	}
	return nil
}

// Rollback disconnects the receiver, discards the buffer and rolls back both sides.
// It returns cause; failures of the cleanup itself are appended to it, never in
// its place.
func (b *Boundary) Rollback(ctx context.Context, cause error) error {
	b.end()

	var result *multierror.Error
	if err := b.ReleaseReceiver(); err != nil {
		result = multierror.Append(result, err)
	}
	b.mu.Lock()
	buf := b.buffer
	b.mu.Unlock()
	if buf != nil {
		buf.Discard()
	}
	if err := b.staging.Rollback(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.remote.Rollback(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if result == nil {
		return cause
	}
	logger.Errorf("Transfer: cleanup of message_id %s failed: %v", b.messageID, result)
	if cause == nil {
		return result.ErrorOrNil()
	}
	return multierror.Append(cause, result.Errors...)
}
