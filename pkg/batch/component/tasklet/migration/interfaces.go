package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
)

// StagingMigrationsTable tracks the applied staging schema versions.
const StagingMigrationsTable = "lockxfer_staging_migrations"

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	// tableName: The name of the table used to track migration history.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Version returns the applied version and whether it is dirty.
	Version(migrationFS fs.FS, path string, tableName string) (uint, bool, error)
}

// MigratorProvider is a factory for creating Migrator instances.
type MigratorProvider interface {
	NewMigrator(dbConn database.DBConnection) Migrator
}
