package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/lockxfer/pkg/batch/core/adapter"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"

	"gorm.io/gorm"
)

// GormTxAdapter implements tx.Tx over a GORM transaction.
type GormTxAdapter struct {
	executor
}

// Savepoint implements tx.Tx.
func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager.
type GormTransactionManager struct {
	name string
	// open returns the connection pool to begin on; resolved per Begin so that a
	// reconnect by the resolver is picked up.
	open func(ctx context.Context) (*gorm.DB, error)
}

// NewGormTransactionManager creates a manager over a fixed *gorm.DB.
func NewGormTransactionManager(name string, db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{
		name: name,
		open: func(context.Context) (*gorm.DB, error) { return db, nil },
	}
}

// Name implements tx.TransactionManager.
func (m *GormTransactionManager) Name() string {
	return m.name
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	db, err := m.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.name, err)
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}

	gormTx := db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.name, gormTx.Error)
	}
	return &GormTxAdapter{executor: executor{db: gormTx}}, nil
}

// Commit implements tx.TransactionManager.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return gormTx.db.Commit().Error
}

// Rollback implements tx.TransactionManager.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return gormTx.db.Rollback().Error
}

// GormTransactionManagerFactory is the GORM implementation of tx.TransactionManagerFactory.
type GormTransactionManagerFactory struct {
	dbResolver database.DBConnectionResolver
}

// NewGormTransactionManagerFactory creates an instance of GormTransactionManagerFactory.
func NewGormTransactionManagerFactory(dbResolver database.DBConnectionResolver) tx.TransactionManagerFactory {
	return &GormTransactionManagerFactory{dbResolver: dbResolver}
}

// NewTransactionManager returns a manager that resolves conn by name on every Begin.
func (f *GormTransactionManagerFactory) NewTransactionManager(conn coreAdapter.ResourceConnection) tx.TransactionManager {
	name := conn.Name()
	return &GormTransactionManager{
		name: name,
		open: func(ctx context.Context) (*gorm.DB, error) {
			resolved, err := f.dbResolver.ResolveDBConnection(ctx, name)
			if err != nil {
				return nil, err
			}
			adapter, ok := resolved.(*GormDBAdapter)
			if !ok {
				return nil, fmt.Errorf("internal error: DBConnection implementation is not *GormDBAdapter")
			}
			return adapter.GormDB(), nil
		},
	}
}
