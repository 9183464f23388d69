package migration

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Default names of the tables created by the embedded staging migrations.
const (
	defaultLogTable    = "h3g_it_gl_import_log"
	defaultImportTable = "h3g_it_gl_import_all"
)

// StagingMigration brings the staging schema up to date before any transfer runs.
type StagingMigration struct {
	cfg              *config.Config
	dbResolver       database.DBConnectionResolver
	migratorProvider MigratorProvider
	migrationFS      fs.FS
	dbProviders      map[string]database.DBProvider
}

// NewStagingMigration creates a StagingMigration. migrationFS holds one directory per
// database type; a non-empty staging_migrations_dir replaces it with that directory.
func NewStagingMigration(
	cfg *config.Config,
	dbResolver database.DBConnectionResolver,
	migratorProvider MigratorProvider,
	migrationFS fs.FS,
	dbProviders []database.DBProvider,
) *StagingMigration {
	providers := make(map[string]database.DBProvider, len(dbProviders))
	for _, p := range dbProviders {
		providers[p.Type()] = p
	}
	if dir := cfg.Lockxfer.Infrastructure.StagingMigrationsDir; dir != "" {
		migrationFS = os.DirFS(dir)
	}
	return &StagingMigration{
		cfg:              cfg,
		dbResolver:       dbResolver,
		migratorProvider: migratorProvider,
		migrationFS:      migrationFS,
		dbProviders:      providers,
	}
}

// Execute applies the pending migrations for the staging connection.
func (t *StagingMigration) Execute(ctx context.Context) error {
	transferCfg := t.cfg.Lockxfer.Transfer
	name := transferCfg.StagingConnection

	if t.cfg.Lockxfer.Infrastructure.StagingMigrationsDir == "" &&
		(transferCfg.LogTable != defaultLogTable || transferCfg.ImportTable != defaultImportTable) {
		logger.Warnf("Embedded staging migrations create '%s' and '%s', but the configured tables are '%s' and '%s'. Set staging_migrations_dir to migrate custom tables.",
			defaultLogTable, defaultImportTable, transferCfg.LogTable, transferCfg.ImportTable)
	}

	conn, err := t.dbResolver.ResolveDBConnection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve staging connection '%s': %w", name, err)
	}

	// Redshift shares the postgres migration scripts.
	dir := conn.Type()
	if dir == "redshift" {
		dir = "postgres"
	}

	logger.Infof("Applying staging migrations to '%s' from '%s'.", name, dir)
	migrator := t.migratorProvider.NewMigrator(conn)
	upErr := migrator.Up(ctx, t.migrationFS, dir, StagingMigrationsTable)

	// The migrate instance closes the pool on the way out, success or not.
	if reconnectErr := t.reconnect(conn.Type(), name); reconnectErr != nil {
		if upErr != nil {
			return fmt.Errorf("staging migration failed: %w (reconnect also failed: %v)", upErr, reconnectErr)
		}
		return reconnectErr
	}
	if upErr != nil {
		return fmt.Errorf("staging migration failed for '%s': %w", name, upErr)
	}
	logger.Infof("Staging migrations applied to '%s'.", name)
	return nil
}

func (t *StagingMigration) reconnect(dbType, name string) error {
	provider, ok := t.dbProviders[dbType]
	if !ok {
		return fmt.Errorf("no DBProvider registered for type '%s'", dbType)
	}
	if _, err := provider.ForceReconnect(name); err != nil {
		return fmt.Errorf("failed to reconnect '%s' after migration: %w", name, err)
	}
	return nil
}
