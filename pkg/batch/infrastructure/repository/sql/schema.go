package sql

import "time"

// WorkUnitStateEntity is the persisted ExecutionContext of one work unit.
type WorkUnitStateEntity struct {
	WorkUnitID       int64     `gorm:"column:work_unit_id;primaryKey;autoIncrement:false"`
	WorkUnitName     string    `gorm:"column:work_unit_name;size:255"`
	ExecutionContext string    `gorm:"column:execution_context;type:text"`
	LastUpdated      time.Time `gorm:"column:last_updated"`
}

// TableName implements gorm's Tabler.
func (WorkUnitStateEntity) TableName() string {
	return "lockxfer_work_unit_state"
}
