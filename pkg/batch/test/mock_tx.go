package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/lockxfer/pkg/batch/core/tx"
)

// MockTx is a testify mock of tx.Tx.
type MockTx struct {
	mock.Mock
}

// Select mocks tx.TxExecutor.Select.
func (m *MockTx) Select(ctx context.Context, table string, spec model.SelectSpec) ([]model.Row, error) {
	args := m.Called(ctx, table, spec)
	rows, _ := args.Get(0).([]model.Row)
	return rows, args.Error(1)
}

// Update mocks tx.TxExecutor.Update.
func (m *MockTx) Update(ctx context.Context, table string, set model.Row, where model.Where) (int64, error) {
	args := m.Called(ctx, table, set, where)
	return args.Get(0).(int64), args.Error(1)
}

// Insert mocks tx.TxExecutor.Insert.
func (m *MockTx) Insert(ctx context.Context, table string, rows []model.Row, batchSize int) (int64, error) {
	args := m.Called(ctx, table, rows, batchSize)
	return args.Get(0).(int64), args.Error(1)
}

// Cursor mocks tx.TxExecutor.Cursor.
func (m *MockTx) Cursor(ctx context.Context, table string, spec model.SelectSpec) (tx.Cursor, error) {
	args := m.Called(ctx, table, spec)
	cursor, _ := args.Get(0).(tx.Cursor)
	return cursor, args.Error(1)
}

// Savepoint mocks tx.Tx.Savepoint.
func (m *MockTx) Savepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// RollbackToSavepoint mocks tx.Tx.RollbackToSavepoint.
func (m *MockTx) RollbackToSavepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// MockTxManager is a testify mock of tx.TransactionManager.
type MockTxManager struct {
	mock.Mock
}

// Name returns a fixed connection name.
func (m *MockTxManager) Name() string {
	return "mock"
}

// Begin mocks tx.TransactionManager.Begin.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

// Commit mocks tx.TransactionManager.Commit.
func (m *MockTxManager) Commit(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

// Rollback mocks tx.TransactionManager.Rollback.
func (m *MockTxManager) Rollback(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

var (
	_ tx.Tx                 = (*MockTx)(nil)
	_ tx.TransactionManager = (*MockTxManager)(nil)
)
