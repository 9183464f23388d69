// Package sql persists work-unit state in a relational database through gorm.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	model "github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/serialization"
)

const moduleName = "SQLStateStore"

// gormConnection is implemented by connections backed by gorm.
type gormConnection interface {
	GormDB() *gorm.DB
}

// SQLStateStore implements repository.WorkUnitStateStore on the lockxfer_work_unit_state table.
// Every write runs in its own short transaction, independent of the claim transaction.
type SQLStateStore struct {
	dbResolver database.DBConnectionResolver
	// dbName is the name of the database connection holding the state table.
	dbName string
}

var _ repository.WorkUnitStateStore = (*SQLStateStore)(nil)

// NewSQLStateStore creates a new instance of SQLStateStore.
func NewSQLStateStore(dbResolver database.DBConnectionResolver, dbName string) *SQLStateStore {
	return &SQLStateStore{dbResolver: dbResolver, dbName: dbName}
}

// getDB resolves the latest connection and returns its gorm handle.
func (s *SQLStateStore) getDB(ctx context.Context) (*gorm.DB, database.DBConnection, error) {
	conn, err := s.dbResolver.ResolveDBConnection(ctx, s.dbName)
	if err != nil {
		return nil, nil, exception.NewBatchError(moduleName, fmt.Sprintf("Failed to resolve DB connection '%s'", s.dbName), err, false, true)
	}
	gc, ok := conn.(gormConnection)
	if !ok {
		return nil, nil, exception.NewBatchError(moduleName, fmt.Sprintf("Resolved connection '%s' is not gorm-backed", s.dbName), nil, false, false)
	}
	return gc.GormDB().WithContext(ctx), conn, nil
}

// EnsureSchema creates or updates the state table.
func (s *SQLStateStore) EnsureSchema(ctx context.Context) error {
	db, _, err := s.getDB(ctx)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&WorkUnitStateEntity{}); err != nil {
		return exception.NewBatchError(moduleName, "failed to migrate work unit state table", err, false, false)
	}
	return nil
}

// SaveLockBatch upserts the work unit's ExecutionContext with the message ids under
// model.KeySourceMessageIDs. Other keys already stored for the work unit are kept.
func (s *SQLStateStore) SaveLockBatch(ctx context.Context, batch model.LockBatch) error {
	db, _, err := s.getDB(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(txDB *gorm.DB) error {
		ec := model.NewExecutionContext()
		var existing WorkUnitStateEntity
		res := txDB.Where("work_unit_id = ?", batch.WorkUnit.ID).Limit(1).Find(&existing)
		if res.Error != nil {
			return exception.NewBatchError(moduleName, fmt.Sprintf("failed to read state of %s", batch.WorkUnit), res.Error, false, true)
		}
		if res.RowsAffected > 0 {
			m := map[string]interface{}(ec)
			if err := serialization.UnmarshalExecutionContext([]byte(existing.ExecutionContext), &m); err != nil {
				return err
			}
			ec = model.ExecutionContext(m)
		}

		ids := batch.MessageIDs
		if ids == nil {
			ids = []string{}
		}
		ec.Put(model.KeySourceMessageIDs, ids)
		data, err := serialization.MarshalExecutionContext(ec)
		if err != nil {
			return err
		}

		entity := WorkUnitStateEntity{
			WorkUnitID:       batch.WorkUnit.ID,
			WorkUnitName:     batch.WorkUnit.Name,
			ExecutionContext: string(data),
			LastUpdated:      time.Now(),
		}
		err = txDB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "work_unit_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"work_unit_name", "execution_context", "last_updated"}),
		}).Create(&entity).Error
		if err != nil {
			return exception.NewBatchError(moduleName, fmt.Sprintf("failed to save lock batch of %s", batch.WorkUnit), err, false, true)
		}
		logger.Debugf("Saved lock batch of %s (%d message id(s)).", batch.WorkUnit, batch.Len())
		return nil
	})
}

// FindLockBatch loads the message ids published for workUnitID.
func (s *SQLStateStore) FindLockBatch(ctx context.Context, workUnitID int64) (model.LockBatch, error) {
	db, conn, err := s.getDB(ctx)
	if err != nil {
		return model.LockBatch{}, err
	}

	var entity WorkUnitStateEntity
	err = db.Where("work_unit_id = ?", workUnitID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || conn.IsTableNotExistError(err) {
			// A missing table means nothing has been published yet.
			return model.LockBatch{}, repository.ErrLockBatchNotFound
		}
		return model.LockBatch{}, exception.NewBatchError(moduleName, fmt.Sprintf("failed to find lock batch of wfiid=%d", workUnitID), err, false, true)
	}

	ec := map[string]interface{}{}
	if err := serialization.UnmarshalExecutionContext([]byte(entity.ExecutionContext), &ec); err != nil {
		return model.LockBatch{}, err
	}
	ids, ok := model.ExecutionContext(ec).GetStringSlice(model.KeySourceMessageIDs)
	if !ok {
		return model.LockBatch{}, repository.ErrLockBatchNotFound
	}
	return model.LockBatch{
		WorkUnit:   model.WorkUnit{ID: entity.WorkUnitID, Name: entity.WorkUnitName},
		MessageIDs: ids,
	}, nil
}

// DeleteLockBatch removes model.KeySourceMessageIDs from the stored ExecutionContext.
// Other keys of the work unit are kept.
func (s *SQLStateStore) DeleteLockBatch(ctx context.Context, workUnitID int64) error {
	db, _, err := s.getDB(ctx)
	if err != nil {
		return err
	}
	if !db.Migrator().HasTable(&WorkUnitStateEntity{}) {
		return nil
	}

	return db.Transaction(func(txDB *gorm.DB) error {
		var entity WorkUnitStateEntity
		res := txDB.Where("work_unit_id = ?", workUnitID).Limit(1).Find(&entity)
		if res.Error != nil {
			return exception.NewBatchError(moduleName, fmt.Sprintf("failed to read state of wfiid=%d", workUnitID), res.Error, false, true)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		ec := map[string]interface{}{}
		if err := serialization.UnmarshalExecutionContext([]byte(entity.ExecutionContext), &ec); err != nil {
			return err
		}
		model.ExecutionContext(ec).Remove(model.KeySourceMessageIDs)
		data, err := serialization.MarshalExecutionContext(model.ExecutionContext(ec))
		if err != nil {
			return err
		}

		err = txDB.Model(&WorkUnitStateEntity{}).
			Where("work_unit_id = ?", workUnitID).
			Updates(map[string]interface{}{"execution_context": string(data), "last_updated": time.Now()}).Error
		if err != nil {
			return exception.NewBatchError(moduleName, fmt.Sprintf("failed to delete lock batch of wfiid=%d", workUnitID), err, false, true)
		}
		logger.Debugf("Deleted lock batch of wfiid=%d.", workUnitID)
		return nil
	})
}

// Close implements repository.WorkUnitStateStore.
func (s *SQLStateStore) Close() error {
	// The underlying DBConnection is owned by the DBProvider and its lifecycle.
	return nil
}

// StateStoreParams defines the dependencies required by NewStateStore.
type StateStoreParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	DBResolver database.DBConnectionResolver
	Cfg        *config.Config
}

// NewStateStore creates the store on infrastructure.state_db_ref, falling back to the
// staging connection, and creates the state table on start.
func NewStateStore(p StateStoreParams) repository.WorkUnitStateStore {
	dbName := p.Cfg.Lockxfer.Infrastructure.StateDBRef
	if dbName == "" {
		dbName = p.Cfg.Lockxfer.Transfer.StagingConnection
	}
	store := NewSQLStateStore(p.DBResolver, dbName)
	p.Lifecycle.Append(fx.Hook{
		OnStart: store.EnsureSchema,
	})
	return store
}
