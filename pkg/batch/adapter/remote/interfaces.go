// Package remote provides the gateway to the remote source system: single-table
// reads and conditional updates on one held transaction, plus a block-wise
// receive channel for streaming detail rows.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

const moduleName = "remote"

// ErrReceiverClosed is returned by GetData after Disconnect.
var ErrReceiverClosed = errors.New("receiver is disconnected")

// ErrGatewayClosed is returned by any call after Commit, Rollback or Close.
var ErrGatewayClosed = errors.New("remote gateway is closed")

// Gateway executes operations against the remote system. All calls share one
// transaction held for the life of the work unit. Every failure is a RemoteCallError;
// the caller must Rollback before propagating it.
type Gateway interface {
	Select(ctx context.Context, table string, spec model.SelectSpec) ([]model.Row, error)
	// SelectRow returns the first matching row, or nil when nothing matches.
	SelectRow(ctx context.Context, table string, spec model.SelectSpec) (model.Row, error)
	Update(ctx context.Context, table string, set model.Row, where model.Where) (int64, error)
	// NewReceiver opens a block-wise receive channel. No other call may be issued on
	// the gateway until the receiver is drained or disconnected.
	NewReceiver(ctx context.Context, table string, opts ReceiveOptions) (Receiver, error)
	Commit(ctx context.Context) error
	// Rollback is a no-op once the gateway has been committed or rolled back.
	Rollback(ctx context.Context) error
	// Close rolls back an unfinished transaction.
	Close() error
}

// ReceiveOptions configures a receive channel.
type ReceiveOptions struct {
	Select model.SelectSpec
	// Timeout bounds each GetData call; zero waits indefinitely.
	Timeout time.Duration
	// Block is the number of rows per fetch.
	Block int
}

// Receiver hands out the rows of a query in blocks.
type Receiver interface {
	// GetData returns the next block, io.EOF once the rows are exhausted, or a
	// RemoteTimeoutError when no block arrives within the timeout.
	GetData(ctx context.Context) ([]model.Row, error)
	// Disconnect aborts the query and releases the cursor. It is idempotent.
	Disconnect() error
}

// Connector opens one Gateway per work unit.
type Connector interface {
	Open(ctx context.Context) (Gateway, error)
}
