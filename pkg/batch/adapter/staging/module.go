package staging

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
)

// OpenerParams defines the dependencies for NewOpenerFromConfig.
type OpenerParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
	TxFactory  tx.TransactionManagerFactory
	Cfg        *config.TransferConfig
}

// NewOpenerFromConfig opens accessors on transfer.staging_connection.
func NewOpenerFromConfig(p OpenerParams) (Opener, error) {
	conn, err := p.DBResolver.ResolveDBConnection(context.Background(), p.Cfg.StagingConnection)
	if err != nil {
		return nil, fmt.Errorf("staging connection '%s': %w", p.Cfg.StagingConnection, err)
	}
	return NewTxOpener(p.TxFactory.NewTransactionManager(conn)), nil
}

// Module provides the staging Opener.
var Module = fx.Options(
	fx.Provide(NewOpenerFromConfig),
)
