package migration

import (
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
)

// migratorProviderImpl implements MigratorProvider
type migratorProviderImpl struct{}

// NewMigratorProvider creates a new MigratorProvider.
func NewMigratorProvider() MigratorProvider {
	return &migratorProviderImpl{}
}

// NewMigrator creates a golang-migrate backed Migrator for dbConn.
func (p *migratorProviderImpl) NewMigrator(dbConn database.DBConnection) Migrator {
	return NewMigrator(dbConn)
}
