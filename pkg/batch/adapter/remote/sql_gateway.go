package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// SQLConnector opens SQLGateways on one named connection.
type SQLConnector struct {
	tm tx.TransactionManager
}

var _ Connector = (*SQLConnector)(nil)

// NewSQLConnector creates a connector beginning transactions through tm.
func NewSQLConnector(tm tx.TransactionManager) *SQLConnector {
	return &SQLConnector{tm: tm}
}

// Open begins the transaction the returned gateway holds.
func (c *SQLConnector) Open(ctx context.Context) (Gateway, error) {
	t, err := c.tm.Begin(ctx)
	if err != nil {
		return nil, exception.NewRemoteCallError(moduleName, fmt.Sprintf("failed to open remote connection '%s'", c.tm.Name()), err)
	}
	return &SQLGateway{tm: c.tm, tx: t}, nil
}

// SQLGateway implements Gateway over a transaction of any registered SQL dialect.
type SQLGateway struct {
	tm tx.TransactionManager
	tx tx.Tx

	mu       sync.Mutex
	finished bool
	receiver *CursorReceiver
}

var _ Gateway = (*SQLGateway)(nil)

// ready fails when the transaction has ended or a receiver still owns the connection.
func (g *SQLGateway) ready() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return exception.NewRemoteCallError(moduleName, "gateway used after end of transaction", ErrGatewayClosed)
	}
	if g.receiver != nil && !g.receiver.Finished() {
		return exception.NewRemoteCallError(moduleName, "receiver still open on this connection", nil)
	}
	return nil
}

// Select implements Gateway.
func (g *SQLGateway) Select(ctx context.Context, table string, spec model.SelectSpec) ([]model.Row, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	rows, err := g.tx.Select(ctx, table, spec)
	if err != nil {
		return nil, exception.NewRemoteCallError(moduleName, fmt.Sprintf("select on %s failed", table), err)
	}
	return rows, nil
}

// SelectRow implements Gateway.
func (g *SQLGateway) SelectRow(ctx context.Context, table string, spec model.SelectSpec) (model.Row, error) {
	rows, err := g.Select(ctx, table, spec)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update implements Gateway.
func (g *SQLGateway) Update(ctx context.Context, table string, set model.Row, where model.Where) (int64, error) {
	if err := g.ready(); err != nil {
		return 0, err
	}
	n, err := g.tx.Update(ctx, table, set, where)
	if err != nil {
		return 0, exception.NewRemoteCallError(moduleName, fmt.Sprintf("update on %s failed", table), err)
	}
	return n, nil
}

// NewReceiver implements Gateway.
func (g *SQLGateway) NewReceiver(ctx context.Context, table string, opts ReceiveOptions) (Receiver, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	r, err := StartReceiver(ctx, func(cctx context.Context) (tx.Cursor, error) {
		return g.tx.Cursor(cctx, table, opts.Select)
	}, opts)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.receiver = r
	g.mu.Unlock()
	return r, nil
}

// end marks the transaction finished and returns the receiver to release, if any.
func (g *SQLGateway) end() (*CursorReceiver, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return nil, false
	}
	g.finished = true
	r := g.receiver
	g.receiver = nil
	return r, true
}

// Commit implements Gateway.
func (g *SQLGateway) Commit(ctx context.Context) error {
	if err := g.ready(); err != nil {
		return err
	}
	if _, ok := g.end(); !ok {
		return exception.NewRemoteCallError(moduleName, "commit after end of transaction", ErrGatewayClosed)
	}
	if err := g.tm.Commit(g.tx); err != nil {
		return exception.NewRemoteCallError(moduleName, "remote commit failed", err)
	}
	return nil
}

// Rollback implements Gateway.
func (g *SQLGateway) Rollback(ctx context.Context) error {
	r, ok := g.end()
	if !ok {
		return nil
	}
	if r != nil {
		r.Disconnect()
	}
	if err := g.tm.Rollback(g.tx); err != nil {
		return exception.NewRemoteCallError(moduleName, "remote rollback failed", err)
	}
	return nil
}

// Close implements Gateway.
func (g *SQLGateway) Close() error {
	g.mu.Lock()
	open := !g.finished
	g.mu.Unlock()
	if open {
		logger.Warnf("Remote gateway on '%s' closed with an open transaction; rolling back.", g.tm.Name())
	}
	return g.Rollback(context.Background())
}
