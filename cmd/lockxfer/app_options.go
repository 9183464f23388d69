package main

import (
	"time"

	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/remote"
	"github.com/tigerroll/lockxfer/pkg/batch/adapter/staging"
	"github.com/tigerroll/lockxfer/pkg/batch/component/tasklet/migration"
	config "github.com/tigerroll/lockxfer/pkg/batch/core/config"
	coremetrics "github.com/tigerroll/lockxfer/pkg/batch/core/metrics"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/guard"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/lock"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/reconcile"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/step"
	"github.com/tigerroll/lockxfer/pkg/batch/engine/transfer"
	inframetrics "github.com/tigerroll/lockxfer/pkg/batch/infrastructure/metrics"
	inmemoryRepo "github.com/tigerroll/lockxfer/pkg/batch/infrastructure/repository/inmemory"
	sqlRepo "github.com/tigerroll/lockxfer/pkg/batch/infrastructure/repository/sql"
	logger "github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// startTimeout covers the staging migrations run by the start hooks.
const startTimeout = 5 * time.Minute

// GetApplicationOptions builds the uber-fx options for cfg and returns them as a slice.
// The state store and the metrics backend are chosen from cfg here.
func GetApplicationOptions(cfg *config.Config) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(cfg))
	options = append(options, fx.StartTimeout(startTimeout))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, gormadapter.Module, sqlite.Module, mysql.Module, postgres.Module)
	options = append(options, remote.Module, staging.Module)

	obs := cfg.Lockxfer.Observability
	if obs.MetricsAddress != "" || obs.OTLPEndpoint != "" {
		options = append(options, inframetrics.Module)
	} else {
		options = append(options, coremetrics.Module)
	}

	switch cfg.Lockxfer.Infrastructure.StateStore {
	case "sql":
		options = append(options, sqlRepo.Module)
	default:
		options = append(options, inmemoryRepo.Module)
	}

	options = append(options, migration.Module)
	options = append(options, reconcile.Module)
	options = append(options, guard.Module)
	options = append(options, lock.Module)
	options = append(options, transfer.Module)
	options = append(options, step.Module)

	return options
}
