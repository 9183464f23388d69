// Package tx abstracts the database transaction held by one work unit.
// Gateways above it see only rows and conditions; the dialect-specific
// rendering lives in the adapter that implements these interfaces.
package tx

import (
	"context"
	"database/sql"

	coreAdapter "github.com/tigerroll/lockxfer/pkg/batch/core/adapter"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

// TxExecutor defines the table operations executable within a transaction.
type TxExecutor interface {
	// Select returns all rows matching spec. With spec.CountAs set it returns a single
	// row holding the count under that key.
	Select(ctx context.Context, table string, spec model.SelectSpec) ([]model.Row, error)

	// Update sets the given columns on every row matching where and returns the
	// number of affected rows. An empty where is rejected.
	Update(ctx context.Context, table string, set model.Row, where model.Where) (rowsAffected int64, err error)

	// Insert writes rows in batches of batchSize (all at once when batchSize <= 0).
	Insert(ctx context.Context, table string, rows []model.Row, batchSize int) (rowsAffected int64, err error)

	// Cursor opens a forward-only cursor over the rows matching spec. The cursor is
	// bound to ctx: cancelling ctx aborts the underlying query.
	Cursor(ctx context.Context, table string, spec model.SelectSpec) (Cursor, error)
}

// Cursor iterates over query results. Next returns io.EOF once the rows are exhausted.
// While a cursor is open no other statement may be issued on the same transaction.
type Cursor interface {
	Next() (model.Row, error)
	Close() error
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a named savepoint within the transaction.
	Savepoint(name string) error
	// RollbackToSavepoint undoes the changes made after the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of transactions on one named connection.
type TransactionManager interface {
	// Name returns the connection name the manager begins transactions on.
	Name() string
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates TransactionManagers for named connections.
type TransactionManagerFactory interface {
	NewTransactionManager(conn coreAdapter.ResourceConnection) TransactionManager
}
