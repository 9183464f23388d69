package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/lockxfer/pkg/batch/core/adapter"
)

// Module exports the resolver and transaction manager factory. Concrete providers
// come from the dialect subpackages.
var Module = fx.Options(
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Provide(
		NewGormDBConnectionResolver,
		func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r },
		func(r *GormDBConnectionResolver) coreAdapter.ResourceConnectionResolver { return r },
	),
	fx.Invoke(registerCloseHook),
)

func registerCloseHook(lc fx.Lifecycle, r *GormDBConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return r.CloseAll()
		},
	})
}
