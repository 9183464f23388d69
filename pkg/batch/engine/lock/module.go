package lock

import (
	"go.uber.org/fx"
)

// Module provides the lock Coordinator.
var Module = fx.Options(
	fx.Provide(NewCoordinator),
)
