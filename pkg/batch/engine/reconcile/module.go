package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Hook kinds accepted by infrastructure.reconciliation.
const (
	HookLog = "log"
	HookSQL = "sql"
)

// HookParams defines the dependencies for NewHook.
type HookParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	DBResolver database.DBConnectionResolver
	Cfg        *config.Config
}

// NewHook selects the reconciliation hook configured in infrastructure.reconciliation.
// The SQL journal lives on reconciliation_db_ref, falling back to the staging connection.
func NewHook(p HookParams) (Hook, error) {
	infra := p.Cfg.Lockxfer.Infrastructure
	switch infra.Reconciliation {
	case "", HookLog:
		return NewLogHook(), nil
	case HookSQL:
		dbName := infra.ReconciliationDBRef
		if dbName == "" {
			dbName = p.Cfg.Lockxfer.Transfer.StagingConnection
		}
		j := NewSQLJournal(p.DBResolver, dbName)
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				logger.Infof("Reconciliation journal on '%s'.", dbName)
				return j.EnsureSchema(ctx)
			},
		})
		return j, nil
	default:
		return nil, fmt.Errorf("unknown reconciliation hook %q", infra.Reconciliation)
	}
}

// Module provides the configured Hook.
var Module = fx.Options(
	fx.Provide(NewHook),
)
