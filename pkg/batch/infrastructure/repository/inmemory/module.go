package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/lockxfer/pkg/batch/core/domain/repository"
)

// Module is an Fx module that provides InMemoryStateStore as a repository.WorkUnitStateStore.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryStateStore,
			fx.As(new(repository.WorkUnitStateStore)),
		),
	),
)
