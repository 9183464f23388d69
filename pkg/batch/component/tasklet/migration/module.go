// Package migration applies the staging schema migrations at startup.
package migration

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/component/tasklet/migration/drivers"
	"github.com/tigerroll/lockxfer/pkg/batch/component/tasklet/migration/filesystem"
	config "github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// StagingMigrationParams defines the dependencies for NewStagingMigrationFromParams.
type StagingMigrationParams struct {
	fx.In
	Cfg              *config.Config
	DBResolver       database.DBConnectionResolver
	MigratorProvider MigratorProvider
	MigrationFS      fs.FS                 `name:"stagingMigrationsFS"`
	DBProviders      []database.DBProvider `group:"db_providers"`
}

// NewStagingMigrationFromParams adapts NewStagingMigration to Fx.
func NewStagingMigrationFromParams(p StagingMigrationParams) *StagingMigration {
	return NewStagingMigration(p.Cfg, p.DBResolver, p.MigratorProvider, p.MigrationFS, p.DBProviders)
}

// registerStagingMigration runs the migration on start when migrate_staging is set.
func registerStagingMigration(lc fx.Lifecycle, cfg *config.Config, m *StagingMigration) {
	if !cfg.Lockxfer.Infrastructure.MigrateStaging {
		logger.Debugf("Staging migrations are disabled.")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Execute(ctx)
		},
	})
}

// Module provides the staging migration and runs it on application start.
var Module = fx.Options(
	fx.Provide(NewMigratorProvider),
	fx.Provide(NewStagingMigrationFromParams),
	fx.Invoke(registerStagingMigration),
	filesystem.Module,
	drivers.Module, // Include the module that registers golang-migrate drivers
)
