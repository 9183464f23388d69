package filesystem

import (
	"go.uber.org/fx"
)

// StagingMigrationsFSTag is the Fx tag for the embedded staging migrations filesystem.
const StagingMigrationsFSTag = `name:"stagingMigrationsFS"`

// Module provides the embedded staging migrations.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		ProvideStagingMigrationsFS,
		fx.ResultTags(StagingMigrationsFSTag),
	)),
)
