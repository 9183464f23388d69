package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// ErrEventNotFound is returned by Resolve for an unknown or already resolved event.
var ErrEventNotFound = errors.New("reconciliation event not found")

// EventEntity is the persisted form of an Event.
type EventEntity struct {
	ID           string     `gorm:"column:id;primaryKey;size:36"`
	WorkUnitID   int64      `gorm:"column:qorus_wfiid"`
	WorkUnitName string     `gorm:"column:work_unit_name;size:255"`
	MessageID    string     `gorm:"column:message_id;size:255;index"`
	Committed    string     `gorm:"column:committed_side;size:16"`
	Failed       string     `gorm:"column:failed_side;size:16"`
	Cause        string     `gorm:"column:cause;type:text"`
	OccurredAt   time.Time  `gorm:"column:occurred_at"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`
}

// TableName implements gorm's Tabler.
func (EventEntity) TableName() string {
	return "lockxfer_reconcile_event"
}

type gormConnection interface {
	GormDB() *gorm.DB
}

// SQLJournal stores events in the lockxfer_reconcile_event table.
type SQLJournal struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

var _ Journal = (*SQLJournal)(nil)

// NewSQLJournal creates a journal on the named connection.
func NewSQLJournal(dbResolver database.DBConnectionResolver, dbName string) *SQLJournal {
	return &SQLJournal{dbResolver: dbResolver, dbName: dbName}
}

func (j *SQLJournal) db(ctx context.Context) (*gorm.DB, error) {
	conn, err := j.dbResolver.ResolveDBConnection(ctx, j.dbName)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("Failed to resolve DB connection '%s'", j.dbName), err, false, true)
	}
	gc, ok := conn.(gormConnection)
	if !ok {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("Resolved connection '%s' is not gorm-backed", j.dbName), nil, false, false)
	}
	return gc.GormDB().WithContext(ctx), nil
}

// EnsureSchema creates or updates the journal table.
func (j *SQLJournal) EnsureSchema(ctx context.Context) error {
	db, err := j.db(ctx)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&EventEntity{}); err != nil {
		return exception.NewBatchError(moduleName, "failed to migrate reconciliation journal", err, false, false)
	}
	return nil
}

// Report implements Hook. The event is logged as well, so it is not lost when the
// journal itself is unreachable.
func (j *SQLJournal) Report(ctx context.Context, ev Event) error {
	LogHook{}.Report(ctx, ev)

	db, err := j.db(ctx)
	if err != nil {
		return err
	}
	entity := EventEntity{
		ID:           ev.ID,
		WorkUnitID:   ev.WorkUnit.ID,
		WorkUnitName: ev.WorkUnit.Name,
		MessageID:    ev.MessageID,
		Committed:    string(ev.Committed),
		Failed:       string(ev.Failed),
		Cause:        ev.Cause,
		OccurredAt:   ev.OccurredAt,
	}
	if err := db.Create(&entity).Error; err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to journal event %s", ev.ID), err, false, true)
	}
	return nil
}

// Pending implements Journal.
func (j *SQLJournal) Pending(ctx context.Context) ([]Event, error) {
	db, err := j.db(ctx)
	if err != nil {
		return nil, err
	}
	var entities []EventEntity
	if err := db.Where("resolved_at IS NULL").Order("occurred_at, id").Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to list pending events", err, false, true)
	}
	events := make([]Event, len(entities))
	for i, e := range entities {
		events[i] = Event{
			ID:         e.ID,
			WorkUnit:   model.WorkUnit{ID: e.WorkUnitID, Name: e.WorkUnitName},
			MessageID:  e.MessageID,
			Committed:  Side(e.Committed),
			Failed:     Side(e.Failed),
			Cause:      e.Cause,
			OccurredAt: e.OccurredAt,
		}
	}
	return events, nil
}

// Resolve implements Journal.
func (j *SQLJournal) Resolve(ctx context.Context, id string) error {
	db, err := j.db(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&EventEntity{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Update("resolved_at", time.Now())
	if res.Error != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve event %s", id), res.Error, false, true)
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	logger.Infof("Reconciliation event %s resolved.", id)
	return nil
}
