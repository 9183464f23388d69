package staging

import (
	"context"
	"fmt"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// TxOpener opens TxAccessors on one named staging connection.
type TxOpener struct {
	tm tx.TransactionManager
}

var _ Opener = (*TxOpener)(nil)

// NewTxOpener creates an opener beginning transactions through tm.
func NewTxOpener(tm tx.TransactionManager) *TxOpener {
	return &TxOpener{tm: tm}
}

// Open begins the staging transaction.
func (o *TxOpener) Open(ctx context.Context) (Accessor, error) {
	t, err := o.tm.Begin(ctx)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open staging connection '%s'", o.tm.Name()), err, false, false)
	}
	return &TxAccessor{tm: o.tm, tx: t}, nil
}

// TxAccessor implements Accessor over a tx.Tx.
type TxAccessor struct {
	tm tx.TransactionManager
	tx tx.Tx

	mu       sync.Mutex
	finished bool
}

var _ Accessor = (*TxAccessor)(nil)

func (a *TxAccessor) ready(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return exception.NewBatchError(moduleName, op, ErrAccessorClosed, false, false)
	}
	return nil
}

// SelectRow implements Accessor.
func (a *TxAccessor) SelectRow(ctx context.Context, table string, spec model.SelectSpec) (model.Row, error) {
	if err := a.ready("select"); err != nil {
		return nil, err
	}
	rows, err := a.tx.Select(ctx, table, spec)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("select on %s failed", table), err, false, false)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// InsertRow implements Accessor.
func (a *TxAccessor) InsertRow(ctx context.Context, table string, row model.Row) error {
	if err := a.ready("insert"); err != nil {
		return err
	}
	if _, err := a.tx.Insert(ctx, table, []model.Row{row}, 1); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("insert into %s failed", table), err, false, false)
	}
	return nil
}

// NewBulkInsert implements Accessor. Blocks are written with one batched INSERT each.
func (a *TxAccessor) NewBulkInsert(table string, blockSize int) BulkInsert {
	return NewBufferedBulkInsert(table, blockSize, func(ctx context.Context, rows []model.Row) error {
		if err := a.ready("bulk insert"); err != nil {
			return err
		}
		_, err := a.tx.Insert(ctx, table, rows, len(rows))
		return err
	})
}

func (a *TxAccessor) end() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return false
	}
	a.finished = true
	return true
}

// Commit implements Accessor.
func (a *TxAccessor) Commit(ctx context.Context) error {
	if !a.end() {
		return exception.NewBatchError(moduleName, "commit after end of transaction", ErrAccessorClosed, false, false)
	}
	if err := a.tm.Commit(a.tx); err != nil {
		return exception.NewBatchError(moduleName, "staging commit failed", err, false, false)
	}
	return nil
}

// Rollback implements Accessor.
func (a *TxAccessor) Rollback(ctx context.Context) error {
	if !a.end() {
		return nil
	}
	if err := a.tm.Rollback(a.tx); err != nil {
		return exception.NewBatchError(moduleName, "staging rollback failed", err, false, false)
	}
	return nil
}

// Close implements Accessor.
func (a *TxAccessor) Close() error {
	a.mu.Lock()
	open := !a.finished
	a.mu.Unlock()
	if open {
		logger.Warnf("Staging accessor on '%s' closed with an open transaction; rolling back.", a.tm.Name())
	}
	return a.Rollback(context.Background())
}
