package sql

import "go.uber.org/fx"

// Module provides the SQL-backed repository.WorkUnitStateStore.
var Module = fx.Options(
	fx.Provide(NewStateStore),
)
